// Command raxtax classifies DNA barcode query sequences against a
// taxonomically labeled reference database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raxtax/raxtax/internal/assemble"
	"github.com/raxtax/raxtax/internal/driver"
	"github.com/raxtax/raxtax/internal/fastaio"
	"github.com/raxtax/raxtax/internal/kindex"
	"github.com/raxtax/raxtax/internal/nucleotide"
	"github.com/raxtax/raxtax/internal/raxerr"
	"github.com/raxtax/raxtax/internal/refdb"
	"github.com/raxtax/raxtax/internal/rlog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("raxtax", flag.ContinueOnError)

	prefix := fs.String("prefix", "", "output directory (default <queries>.out)")
	redo := fs.Bool("redo", false, "overwrite an existing output directory")
	skipExact := fs.Bool("skip-exact-matches", false, "exclude exact matches from scoring")
	tsv := fs.Bool("tsv", false, "also emit interleaved raxtax.tsv")
	makeDB := fs.Bool("make-db", false, "write <database>.bin sidecar and exit")
	threads := fs.Int("threads", 0, "worker count, 0 = all cores")
	pin := fs.Bool("pin", false, "enable worker-to-core pinning")
	verbose := fs.Bool("verbose", false, "emit info/timing log lines")
	quiet := fs.Bool("quiet", false, "emit only errors")

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: raxtax [flags] <database.fasta[.gz]> <queries.fasta[.gz]>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return raxerr.KindInput.ExitCode()
	}

	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		return raxerr.KindInput.ExitCode()
	}
	dbPath := rest[0]

	var queryPath string
	if !*makeDB {
		if len(rest) < 2 {
			fs.Usage()
			return raxerr.KindInput.ExitCode()
		}
		queryPath = rest[1]
	}

	level := rlog.Default
	switch {
	case *quiet:
		level = rlog.Quiet
	case *verbose:
		level = rlog.Verbose
	}

	outDir := *prefix
	if outDir == "" && queryPath != "" {
		outDir = queryPath + ".out"
	}

	var logWriter *os.File
	if outDir != "" {
		if err := prepareOutputDir(outDir, *redo); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return raxerr.ExitCode(err)
		}
		lf, err := os.Create(filepath.Join(outDir, "raxtax.log"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return raxerr.KindIO.ExitCode()
		}
		defer lf.Close()
		logWriter = lf
	}
	var log *rlog.Logger
	if logWriter != nil {
		log = rlog.New(logWriter, level)
	} else {
		log = rlog.New(os.Stderr, level)
	}

	exitCode, err := runClassify(context.Background(), dbPath, queryPath, outDir, classifyOptions{
		skipExact: *skipExact,
		tsv:       *tsv,
		makeDB:    *makeDB,
		threads:   *threads,
		pin:       *pin,
	}, log)
	if err != nil {
		log.Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		return raxerr.ExitCode(err)
	}
	return exitCode
}

type classifyOptions struct {
	skipExact bool
	tsv       bool
	makeDB    bool
	threads   int
	pin       bool
}

func runClassify(ctx context.Context, dbPath, queryPath, outDir string, opt classifyOptions, log *rlog.Logger) (int, error) {
	start := time.Now()

	idx, set, fromSidecar, err := openDatabase(dbPath, log)
	if err != nil {
		return 0, err
	}
	log.Infof("database ready in %v", time.Since(start))

	if opt.makeDB {
		if fromSidecar {
			return 0, raxerr.New(raxerr.KindInput, "%s is already a database sidecar", dbPath)
		}
		sidecarPath := dbPath + ".bin"
		f, err := os.Create(sidecarPath)
		if err != nil {
			return 0, raxerr.Wrap(raxerr.KindIO, err, "creating sidecar %s", sidecarPath)
		}
		defer f.Close()
		buildID, err := kindex.Save(f, idx, set.Tree, set.Refs)
		if err != nil {
			return 0, err
		}
		log.Infof("wrote database sidecar %s (build %s)", sidecarPath, buildID)
		return 0, nil
	}

	qReader, err := fastaio.Open(queryPath)
	if err != nil {
		return 0, raxerr.Wrap(raxerr.KindIO, err, "opening queries %s", queryPath)
	}
	defer qReader.Close()

	queries, err := refdb.LoadQueries(qReader)
	if err != nil {
		return 0, err
	}
	log.Infof("loaded %d queries", len(queries))

	results, err := driver.Run(ctx, idx, set, queries, driver.Config{
		Threads:       opt.threads,
		SkipExact:     opt.skipExact,
		FloorExponent: assemble.FloorExponent,
		Pin:           opt.pin,
	}, log)
	if err != nil {
		return 0, raxerr.Wrap(raxerr.KindIO, err, "classifying queries")
	}

	if err := writeResults(outDir, results, queries, opt.tsv); err != nil {
		return 0, err
	}

	log.Infof("classified %d queries in %v", len(queries), time.Since(start))
	return 0, nil
}

// openDatabase loads dbPath as either a prebuilt sidecar (written by a
// prior -make-db run) or a FASTA reference file, sniffing the first bytes
// of the file to tell which: a sidecar starts with kindex's magic number,
// which no valid FASTA (starting with '>' or, gzip-compressed, with the
// gzip magic) or FASTA.gz file ever does. The bool result reports which
// path was taken, so callers can reject -make-db on a sidecar that's
// already built.
func openDatabase(dbPath string, log *rlog.Logger) (*kindex.Index, *refdb.Set, bool, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, nil, false, raxerr.Wrap(raxerr.KindIO, err, "opening database %s", dbPath)
	}

	var header [4]byte
	n, _ := io.ReadFull(f, header[:])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, false, raxerr.Wrap(raxerr.KindIO, err, "seeking database %s", dbPath)
	}

	if kindex.LooksLikeSidecar(header[:n]) {
		defer f.Close()
		idx, tree, refs, buildID, err := kindex.Load(f)
		if err != nil {
			return nil, nil, false, err
		}
		log.Infof("loaded database sidecar %s (build %s, %d references)", dbPath, buildID, len(refs))
		return idx, refdb.FromRecords(tree, refs), true, nil
	}
	f.Close()

	dbReader, err := fastaio.Open(dbPath)
	if err != nil {
		return nil, nil, false, raxerr.Wrap(raxerr.KindIO, err, "opening database %s", dbPath)
	}
	defer dbReader.Close()

	set, err := refdb.Load(dbReader, log)
	if err != nil {
		return nil, nil, false, err
	}
	log.Infof("loaded %d references", len(set.Refs))

	keys := make([][]nucleotide.Key, len(set.Refs))
	for i, r := range set.Refs {
		keys[i] = r.Keys
	}
	return kindex.Build(keys), set, false, nil
}

func writeResults(outDir string, results []assemble.Result, queries []refdb.Query, tsv bool) error {
	var primary strings.Builder
	for _, res := range results {
		assemble.WritePrimary(&primary, res)
	}
	if err := os.WriteFile(filepath.Join(outDir, "raxtax.out"), []byte(primary.String()), 0o644); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing raxtax.out")
	}

	if !tsv {
		return nil
	}

	var interleaved strings.Builder
	for i, res := range results {
		assemble.WriteTSV(&interleaved, res, queries[i].Sequence)
	}
	if err := os.WriteFile(filepath.Join(outDir, "raxtax.tsv"), []byte(interleaved.String()), 0o644); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing raxtax.tsv")
	}
	return nil
}

func prepareOutputDir(dir string, redo bool) error {
	if _, err := os.Stat(dir); err == nil {
		if !redo {
			return raxerr.New(raxerr.KindIO, "output directory %s already exists (use -redo to overwrite)", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "creating output directory %s", dir)
	}
	return nil
}
