package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"discoveryflow/internal/config"
	"discoveryflow/internal/discovery"
	"discoveryflow/internal/util"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one discovery pipeline and returns the process exit code:
// 0 when the PDF was written, 1 when the run or the PDF stage failed and
// 2 on bad flags.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)
	fs := flag.NewFlagSet("discovery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fileURLs := fs.String("file-urls", "", "file URLs (comma-separated)")
	fileTypes := fs.String("file-types", "", "file types (comma-separated)")
	query := fs.String("query", "", "optional query")
	outputDesc := fs.String("output-desc", "", "optional output description")
	outDir := fs.String("out", ".", "directory to write "+discovery.ArtifactFilename+" into")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	o, err := discovery.New(config.Load(), discovery.WriterReporter{W: stdout})
	if err != nil {
		logger.Print(err)
		return 1
	}

	out, err := o.Run(ctx, discovery.InputFromText(*fileURLs, *fileTypes, *query, *outputDesc))
	if err != nil {
		logger.Printf("discovery run aborted: %v", err)
		return 1
	}
	if out.PDF == nil {
		logger.Printf("discovery pdf unavailable: %v", out.PDFErr)
		return 1
	}
	path := filepath.Join(*outDir, out.PDF.Filename)
	if err := util.WriteFileAtomic(path, out.PDF.Data); err != nil {
		logger.Print(err)
		return 1
	}
	logger.Printf("wrote %s bytes=%d sha256=%s", path, len(out.PDF.Data), out.PDF.SHA256)
	return 0
}
