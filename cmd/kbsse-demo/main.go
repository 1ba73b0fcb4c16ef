// Command kbsse-demo is a small flag-driven operational entry point for the
// scheme: it indexes a directory of files into a single domain, uploads it
// to an in-process Server, then issues one query and prints the ranked
// results. It is ambient CLI tooling, not part of the CORE spec.md defines
// (spec.md §1 keeps transport and CLI out of the exposed interfaces), the
// same way the teacher repo ships client/client/main.go alongside its
// library packages.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/keybase/kbsse/client"
	"github.com/keybase/kbsse/index"
	"github.com/keybase/kbsse/indexer"
	"github.com/keybase/kbsse/kblog"
	"github.com/keybase/kbsse/server"
)

var (
	corpusDir  = flag.String("corpus_dir", "", "directory of files to index into one domain")
	domainName = flag.String("domain", "demo", "domain name to build and upload the corpus under")
	query      = flag.String("query", "", "word to search for after the corpus is uploaded")
	verbose    = flag.Bool("verbose", false, "log timing for index build and search via kblog")
)

func main() {
	flag.Parse()
	if *verbose {
		kblog.Enable()
	}

	if *corpusDir == "" {
		fmt.Fprintln(os.Stderr, "kbsse-demo: -corpus_dir is required")
		os.Exit(1)
	}

	sketches, max, err := indexDirectory(*corpusDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kbsse-demo: failed to index %s: %s\n", *corpusDir, err)
		os.Exit(1)
	}

	cli, err := client.New(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kbsse-demo: failed to create client: %s\n", err)
		os.Exit(1)
	}
	si, err := cli.SecureIndex(*domainName, max, sketches...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kbsse-demo: failed to build secure index: %s\n", err)
		os.Exit(1)
	}

	srv := server.New(nil)
	if mergeDomain, mergeDocs, ok := srv.Update(*domainName, index.FromSecureIndex(si), nil); !ok {
		fmt.Fprintf(os.Stderr, "kbsse-demo: upload rejected, merge request for %s: %v\n", mergeDomain, mergeDocs)
		os.Exit(1)
	}
	fmt.Printf("Uploaded domain %q: %d documents, %d buckets\n", *domainName, len(si.Docs), len(si.Index))

	if *query == "" {
		return
	}
	runQuery(cli, srv, *query)
}

// indexDirectory walks every regular file directly inside dir, feeding each
// through an indexer.Indexer to build its sketch, and reports the largest
// resulting size (the max input secureIndex needs for padding, spec.md
// §4.2.2). Progress is reported with the same bar the teacher's
// test/testfile.go used for its own bulk file operations.
func indexDirectory(dir string) ([]index.Sketch, uint64, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	bar := pb.StartNew(len(files))
	defer bar.FinishPrint("Indexing complete")

	var sketches []index.Sketch
	var max uint64
	for _, f := range files {
		if f.IsDir() {
			bar.Increment()
			continue
		}
		sketch, err := indexFile(filepath.Join(dir, f.Name()), f.Name())
		if err != nil {
			return nil, 0, err
		}
		if sketch.Size > max {
			max = sketch.Size
		}
		sketches = append(sketches, sketch)
		bar.Increment()
	}
	return sketches, max, nil
}

// indexFile streams path's contents through an Indexer in fixed-size chunks
// so arbitrarily large files never need to be held in memory whole.
func indexFile(path, id string) (index.Sketch, error) {
	f, err := os.Open(path)
	if err != nil {
		return index.Sketch{}, err
	}
	defer f.Close()

	ix := indexer.New(id)
	reader := bufio.NewReader(f)
	buf := make([]byte, 64*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := ix.Write(buf[:n]); werr != nil {
				return index.Sketch{}, werr
			}
		}
		if err != nil {
			break
		}
	}
	return ix.Finish(), nil
}

// runQuery derives a trapdoor query for word and prints the server's
// ranked results, one document id per line.
func runQuery(cli *client.Client, srv *server.Server, word string) {
	q, err := cli.CreateQuery(word)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kbsse-demo: failed to create query: %s\n", err)
		os.Exit(1)
	}

	results := srv.Search(q)
	if len(results) == 0 {
		fmt.Printf("No results for %q\n", word)
		return
	}
	fmt.Printf("Results for %q:\n", word)
	for _, r := range results {
		fmt.Printf("  %s\n", r.ID)
	}
}
