// Cafebabe CLI - inspect, summarize and index JVM class files
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/cafebabe/classfile"
	"github.com/chazu/cafebabe/export"
	"github.com/chazu/cafebabe/manifest"
	"github.com/chazu/cafebabe/store"
)

var log = commonlog.GetLogger("cafebabe")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dump := flag.Bool("dump", false, "Print the decoded attribute tree of each class")
	exportDir := flag.String("export", "", "Write a CBOR summary per class into the given directory")
	index := flag.Bool("index", false, "Index class summaries into the SQLite database")
	dbPath := flag.String("db", "", "Index database path (overrides cafebabe.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cafebabe [options] [classfiles...]\n\n")
		fmt.Fprintf(os.Stderr, "Decodes .class files and dumps, exports or indexes their metadata.\n")
		fmt.Fprintf(os.Stderr, "Without explicit paths, inputs come from cafebabe.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cafebabe -dump Hello.class          # Print the attribute tree\n")
		fmt.Fprintf(os.Stderr, "  cafebabe -export out build/classes  # Export CBOR summaries\n")
		fmt.Fprintf(os.Stderr, "  cafebabe -index -db idx.db ./...    # Build the class index\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	paths := flag.Args()
	var mf *manifest.Manifest
	if len(paths) == 0 || (*index && *dbPath == "") {
		var err error
		mf, err = manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if len(paths) == 0 {
		if mf == nil {
			flag.Usage()
			os.Exit(2)
		}
		paths = mf.InputDirPaths()
	}

	classFiles, err := collectClassFiles(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(classFiles) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no class files found")
		os.Exit(1)
	}

	var idx *store.Store
	if *index {
		path := *dbPath
		if path == "" && mf != nil {
			path = mf.DatabasePath()
		}
		if path == "" {
			fmt.Fprintln(os.Stderr, "Error: -index needs -db or a cafebabe.toml")
			os.Exit(2)
		}
		idx, err = store.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer idx.Close()
	}

	// Dump when no other action is selected.
	doDump := *dump || (!*index && *exportDir == "")

	for _, path := range classFiles {
		if err := processClassFile(path, doDump, *exportDir, idx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	if *verbose {
		fmt.Printf("Processed %d class files\n", len(classFiles))
	}
}

// collectClassFiles expands the given paths: directories are walked
// recursively for .class files, plain files are taken as-is.
func collectClassFiles(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, ".class") {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func processClassFile(path string, dump bool, exportDir string, idx *store.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cf, err := classfile.DecodeClassFileWithObserver(data, func(name string) {
		log.Infof("%s: skipping unrecognized attribute %q", path, name)
	})
	if err != nil {
		return err
	}

	if dump {
		text, err := renderClassFile(cf)
		if err != nil {
			return err
		}
		fmt.Print(text)
	}

	if exportDir != "" || idx != nil {
		summary, err := export.Summarize(cf)
		if err != nil {
			return err
		}
		if exportDir != "" {
			if err := writeSummary(exportDir, summary); err != nil {
				return err
			}
		}
		if idx != nil {
			if err := idx.IndexClass(summary); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeSummary(dir string, summary *export.ClassSummary) error {
	data, err := export.Marshal(summary)
	if err != nil {
		return err
	}
	name := strings.ReplaceAll(summary.Name, "/", ".") + ".cbor"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0644)
}
