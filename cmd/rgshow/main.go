// rgshow prints the ReplayGain tags stored in music files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.senan.xyz/natcmp"
	"go.senan.xyz/table/table"

	"go.senan.xyz/rgain/cmd/internal/logging"
	"go.senan.xyz/rgain/fileutil"
	"go.senan.xyz/rgain/tags"
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
	includeHidden := flag.Bool("include-hidden", false, "do not skip hidden files and directories")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	roots, err := fileutil.ResolveRoots(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var paths []string
	for _, root := range roots {
		err := fileutil.WalkMusicFiles(root, *includeHidden, func(path string) error {
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		return natcmp.Compare(paths[i], paths[j]) < 0
	})

	t := table.NewStringWriter()
	fmt.Fprintf(t, "file\ttrack gain\ttrack peak\talbum gain\talbum peak\n")
	for _, path := range paths {
		if err := printFile(t, path); err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		}
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		fmt.Println(row)
	}
}

func printFile(t io.Writer, path string) error {
	f, err := tags.Read(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\n",
		path,
		orDash(f.Read(tags.ReplayGainTrackGain)),
		orDash(f.Read(tags.ReplayGainTrackPeak)),
		orDash(f.Read(tags.ReplayGainAlbumGain)),
		orDash(f.Read(tags.ReplayGainAlbumPeak)),
	)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
