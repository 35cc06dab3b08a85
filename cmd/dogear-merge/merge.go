package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dogear-go/dogear/internal/cmd"
	"github.com/dogear-go/dogear/pkg/fixture"
	"github.com/dogear-go/dogear/pkg/logging"
	"github.com/dogear-go/dogear/pkg/merge"
	"github.com/dogear-go/dogear/pkg/merge/core"
	"github.com/dogear-go/dogear/pkg/merge/driver"
	"github.com/dogear-go/dogear/pkg/merge/ops"
)

func mergeMain(command *cobra.Command, arguments []string) error {
	// Load defaults from a .env-style file, if requested, without
	// overwriting anything the user already set on the environment.
	if path := mergeConfiguration.env; path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrap(err, "unable to load environment defaults")
		}
	}

	local := firstNonEmpty(mergeConfiguration.local, os.Getenv("DOGEAR_LOCAL_FIXTURE"))
	remote := firstNonEmpty(mergeConfiguration.remote, os.Getenv("DOGEAR_REMOTE_FIXTURE"))
	if local == "" || remote == "" {
		return errors.New("both --local and --remote fixtures are required")
	}

	if pattern := mergeConfiguration.only; pattern != "" {
		for _, path := range []string{local, remote} {
			matched, err := doublestar.Match(pattern, path)
			if err != nil {
				return errors.Wrap(err, "invalid --only pattern")
			}
			if !matched {
				return errors.Errorf("%s doesn't match --only pattern %q", path, pattern)
			}
		}
	}

	localTree, err := loadTree(local)
	if err != nil {
		return errors.Wrap(err, "unable to load local fixture")
	}
	remoteTree, err := loadTree(remote)
	if err != nil {
		return errors.Wrap(err, "unable to load remote fixture")
	}

	logger := logging.RootLogger.Sublogger("merge")
	seen := make(map[core.Guid]struct{})
	for _, guid := range localTree.Guids() {
		seen[guid] = struct{}{}
	}
	for _, guid := range remoteTree.Guids() {
		seen[guid] = struct{}{}
	}
	d := driver.NewDefault(logger, seen)

	started := time.Now()
	m := merge.NewMerger(localTree, remoteTree, d, nil)
	mergedRoot, err := m.Merge()
	if err != nil {
		return errors.Wrap(err, "merge failed")
	}

	completionOps, err := ops.Generate(mergedRoot, nil)
	if err != nil {
		return errors.Wrap(err, "unable to derive completion operations")
	}
	elapsed := time.Since(started)

	printSummary(mergedRoot, completionOps, elapsed)
	return nil
}

func loadTree(path string) (*core.Tree, error) {
	f, err := fixture.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printSummary(root *core.MergedRoot, completionOps *ops.CompletionOps, elapsed time.Duration) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}
	rule := strings.Repeat("-", width)

	fmt.Println(rule)
	color.New(color.Bold).Println("Merge summary")
	fmt.Println(rule)

	counts := root.Counts
	fmt.Printf("Merged nodes:    %s\n", humanize.Comma(int64(counts.MergedNodes)))
	fmt.Printf("Dupes matched:   %s\n", humanize.Comma(int64(counts.Dupes)))
	fmt.Printf("Local deletes:   %s\n", humanize.Comma(int64(counts.LocalDeletes)))
	fmt.Printf("Remote deletes:  %s\n", humanize.Comma(int64(counts.RemoteDeletes)))
	fmt.Printf("Local revives:   %s\n", humanize.Comma(int64(counts.LocalRevives)))
	fmt.Printf("Remote revives:  %s\n", humanize.Comma(int64(counts.RemoteRevives)))
	fmt.Printf("Elapsed:         %s\n", humanize.RelTime(time.Now().Add(-elapsed), time.Now(), "", "ago"))

	if completionOps.IsEmpty() {
		color.Green("Nothing to do; local and remote are already in sync.\n")
		return
	}

	fmt.Println(rule)
	color.New(color.Bold).Println("Operations")
	fmt.Println(rule)
	for _, line := range completionOps.Summarize() {
		fmt.Println(line)
	}
}

var mergeCommand = &cobra.Command{
	Use:   "merge",
	Short: "Run a two-way merge against a local and remote bookmark tree fixture",
	Args:  cobra.NoArgs,
	Run:   cmd.Mainify(mergeMain),
}

var mergeConfiguration struct {
	local  string
	remote string
	env    string
	only   string
}

func init() {
	flags := mergeCommand.Flags()
	flags.StringVar(&mergeConfiguration.local, "local", "", "Path to the local bookmark tree fixture (YAML)")
	flags.StringVar(&mergeConfiguration.remote, "remote", "", "Path to the remote bookmark tree fixture (YAML)")
	flags.StringVar(&mergeConfiguration.env, "env", "", "Path to a .env-style file of fixture path defaults")
	flags.StringVar(&mergeConfiguration.only, "only", "", "Require both fixture paths to match this glob pattern")
}
