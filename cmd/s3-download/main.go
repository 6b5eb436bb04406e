// Command s3-download pulls capture logs out of S3 so cmd/report can run on
// them locally. Capture runs upload backend/client logs under a common
// prefix; this tool lists them newest-first, filters by substring, and skips
// files that already exist locally with the same size.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"latencyreport/pkg/utils"
)

const (
	defaultOutputDir = "./captures"
	defaultRegion    = "us-east-1"
	defaultPrefix    = "mqtt-capture/"
)

var (
	bucket    = flag.String("bucket", os.Getenv("S3_BUCKET"), "S3 bucket holding capture logs (required)")
	outputDir = flag.String("output", defaultOutputDir, "local directory for downloaded logs")
	region    = flag.String("region", defaultRegion, "AWS region")
	prefix    = flag.String("prefix", defaultPrefix, "S3 key prefix")
	pattern   = flag.String("pattern", "", "only process keys containing this substring")
	maxFiles  = flag.Int("max", 0, "maximum number of files to process (0 = all)")
	overwrite = flag.Bool("overwrite", false, "re-download files that already exist locally")
	listOnly  = flag.Bool("list", false, "list matching objects without downloading")
)

type object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type downloader struct {
	bucket     string
	prefix     string
	outputDir  string
	client     *s3.S3
	downloader *s3manager.Downloader
}

func newDownloader(bucket, prefix, outputDir, region string) (*downloader, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}
	return &downloader{
		bucket:     bucket,
		prefix:     prefix,
		outputDir:  outputDir,
		client:     s3.New(sess),
		downloader: s3manager.NewDownloader(sess),
	}, nil
}

// list returns matching objects newest-first.
func (d *downloader) list(pattern string, max int) ([]object, error) {
	var objects []object
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.prefix),
	}
	err := d.client.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if pattern != "" && !strings.Contains(*obj.Key, pattern) {
				continue
			}
			objects = append(objects, object{
				Key:          *obj.Key,
				Size:         *obj.Size,
				LastModified: *obj.LastModified,
			})
		}
		return !lastPage
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", d.bucket, d.prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	if max > 0 && len(objects) > max {
		objects = objects[:max]
	}
	return objects, nil
}

func (d *downloader) download(obj object, overwrite bool) error {
	relPath := strings.TrimPrefix(obj.Key, d.prefix)
	if relPath == "" {
		relPath = filepath.Base(obj.Key)
	}
	localPath := filepath.Join(d.outputDir, relPath)

	if !overwrite {
		if st, err := os.Stat(localPath); err == nil && st.Size() == obj.Size {
			utils.TimestampedPrintfLn("skip %s (already downloaded)", relPath)
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", localPath, err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	utils.TimestampedPrintfLn("download %s (%.2f MB)", relPath, float64(obj.Size)/(1024*1024))
	if _, err := d.downloader.Download(f, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(obj.Key),
	}); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("download %s: %w", obj.Key, err)
	}
	// Keep the upload time so capture runs stay distinguishable on disk.
	if err := os.Chtimes(localPath, obj.LastModified, obj.LastModified); err != nil {
		utils.TimestampedPrintfLn("warn: set times on %s: %v", localPath, err)
	}
	return nil
}

func main() {
	flag.Parse()
	if *bucket == "" {
		log.Fatal("s3-download: -bucket (or S3_BUCKET) is required")
	}

	d, err := newDownloader(*bucket, *prefix, *outputDir, *region)
	if err != nil {
		log.Fatalf("s3-download: %v", err)
	}

	objects, err := d.list(*pattern, *maxFiles)
	if err != nil {
		log.Fatalf("s3-download: %v", err)
	}
	if len(objects) == 0 {
		utils.TimestampedPrintfLn("no objects in s3://%s/%s matching %q", *bucket, *prefix, *pattern)
		return
	}

	if *listOnly {
		var total int64
		for i, obj := range objects {
			total += obj.Size
			fmt.Printf("%3d. %-60s %8.2f MB  %s\n", i+1, filepath.Base(obj.Key),
				float64(obj.Size)/(1024*1024), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("total: %d files, %.2f MB\n", len(objects), float64(total)/(1024*1024))
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("s3-download: create output dir: %v", err)
	}
	succeeded, failed := 0, 0
	for _, obj := range objects {
		if err := d.download(obj, *overwrite); err != nil {
			utils.TimestampedPrintfLn("error: %v", err)
			failed++
			continue
		}
		succeeded++
	}
	utils.TimestampedPrintfLn("done: %d downloaded, %d failed", succeeded, failed)
}
