package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"go.senan.xyz/flagconf"
	"go.senan.xyz/natcmp"
	"go.senan.xyz/table/table"

	"go.senan.xyz/rgain"
	"go.senan.xyz/rgain/backend"
	"go.senan.xyz/rgain/cmd/internal/logging"
	"go.senan.xyz/rgain/fileutil"
)

func init() {
	flag := flag.CommandLine
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), "Usage:\n")
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] <path>...\n", flag.Name())
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	logging.Setup()
	var (
		force         = flag.Bool("force", false, "reanalyse track sets that already have valid replaygain tags")
		includeHidden = flag.Bool("include-hidden", false, "do not skip hidden files and directories")
		dryRun        = flag.Bool("dry-run", false, "analyse and report only, never modify files")
		gainTypeArg   = flag.String("gain-type", "auto", `one of "album", "track", or "auto". auto means album mode unless the directory has a TRACKGAIN marker file`)
		backendArg    = flag.String("backend", "auto", `gain computing backend, a name plus optional conf, eg "rsgain" or "exec loudgain <album> <files>"`)
		jobs          = flag.Int("jobs", runtime.NumCPU(), "number of track sets to analyse in parallel")
		lowMemory     = flag.Bool("low-memory", false, "stream track sets one directory at a time instead of collecting them up front")
	)
	parse()

	gainType, err := rgain.ParseGainType(*gainTypeArg)
	if err != nil {
		slog.Error("parsing gain type", "err", err)
		os.Exit(1)
	}

	computer, err := newComputer(*backendArg)
	if err != nil {
		slog.Error("selecting backend", "err", err)
		os.Exit(1)
	}
	slog.Info("using gain backend", "backend", computer)

	if flag.NArg() == 0 {
		slog.Error("no music paths given")
		os.Exit(1)
	}
	roots, err := fileutil.ResolveRoots(flag.Args())
	if err != nil {
		slog.Error("resolving roots", "err", err)
		os.Exit(1)
	}

	if *dryRun {
		slog.Warn("dry run, no files will be modified")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sets := rgain.MakeTrackSets(findTracks(ctx, roots, *includeHidden, *dryRun), computer, gainType)
	if !*lowMemory {
		var collected []*rgain.TrackSet
		for ts, err := range sets {
			if err != nil {
				slog.Error("grouping tracks", "err", err)
				continue
			}
			collected = append(collected, ts)
		}
		if len(collected) == 0 {
			slog.Error("no music files found in the given paths")
			os.Exit(1)
		}
		sets = sliceSeq(collected)
	}

	work := make(chan *rgain.TrackSet)
	go func() {
		defer close(work)
		for ts, err := range sets {
			if err != nil {
				slog.Error("grouping tracks", "err", err)
				continue
			}
			select {
			case work <- ts:
			case <-ctx.Done():
				ts.Close()
				return
			}
		}
	}()

	var mu sync.Mutex
	var rows [][2]string
	var doneN, errN atomic.Uint32

	var wg sync.WaitGroup
	for range max(1, *jobs) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctxConsume(ctx, work, func(ts *rgain.TrackSet) {
				defer ts.Close()

				status := "ok"
				if err := rgain.ProcessSet(ctx, ts, *force); err != nil {
					slog.ErrorContext(ctx, "analysing track set", "set", ts, "err", err)
					errN.Add(1)
					status = "failed"
				} else {
					doneN.Add(1)
				}

				mu.Lock()
				rows = append(rows, [2]string{status, ts.String()})
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	sort.Slice(rows, func(i, j int) bool {
		return natcmp.Compare(rows[i][1], rows[j][1]) < 0
	})
	t := table.NewStringWriter()
	for _, row := range rows {
		fmt.Fprintf(t, "%s\t%s\n", row[0], row[1])
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		fmt.Println(row)
	}

	if *dryRun {
		slog.Warn("dry run, no files were modified")
	}
	if errN.Load() > 0 {
		slog.Error("analysis finished with errors", "done", doneN.Load(), "errs", errN.Load())
		return
	}
	slog.Info("analysis finished", "done", doneN.Load())
}

func parse() {
	userConfig, _ := os.UserConfigDir()
	defaultConfigPath := filepath.Join(userConfig, rgain.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "path to config file")

	printVersion := flag.Bool("version", false, "print the version")

	flag.Parse()
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string { return rgain.Name }
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), rgain.Version)
		os.Exit(0)
	}
}

func newComputer(arg string) (backend.Computer, error) {
	name, conf, _ := strings.Cut(strings.TrimSpace(arg), " ")
	if name == "auto" {
		return backend.Auto()
	}
	return backend.New(name, conf)
}

// findTracks walks the roots yielding opened tracks, dropping files whose
// tags can't be read or whose duration is unknown.
func findTracks(ctx context.Context, roots []string, includeHidden, dryRun bool) iter.Seq[*rgain.Track] {
	return func(yield func(*rgain.Track) bool) {
		errStop := errors.New("stop walking")
		for _, root := range roots {
			slog.Debug("searching for music files", "root", root)
			err := fileutil.WalkMusicFiles(root, includeHidden, func(path string) error {
				if err := ctx.Err(); err != nil {
					return errStop
				}
				track, err := rgain.NewTrack(path, nil, dryRun)
				if err != nil {
					slog.Debug("skipping unreadable file", "file", path, "err", err)
					return nil
				}
				if track.Length() <= 0 {
					slog.Debug("skipping file with unknown duration", "file", path)
					track.Close()
					return nil
				}
				if !yield(track) {
					return errStop
				}
				return nil
			})
			if errors.Is(err, errStop) {
				return
			}
			if err != nil {
				slog.Error("walking root", "root", root, "err", err)
			}
		}
	}
}

func sliceSeq(sets []*rgain.TrackSet) iter.Seq2[*rgain.TrackSet, error] {
	return func(yield func(*rgain.TrackSet, error) bool) {
		for _, ts := range sets {
			if !yield(ts, nil) {
				return
			}
		}
	}
}

func ctxConsume[T any](ctx context.Context, work <-chan T, f func(T)) {
	for {
		select { // prority select for ctx.Done()
		case <-ctx.Done():
			return
		default:
			select {
			case <-ctx.Done():
				return
			case w, ok := <-work:
				if !ok {
					return
				}
				f(w)
			}
		}
	}
}
