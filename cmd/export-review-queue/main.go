// export-review-queue writes the reports waiting for human review to an xlsx file.
// With -bucket set the workbook is uploaded to GCS instead of written locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/models/reports"
	"github.com/vocari/reports_backend/utils"
)

func main() {
	out := flag.String("out", "review-queue.xlsx", "Local output path")
	bucket := flag.String("bucket", "", "Optional: GCS bucket to upload to")
	limit := flag.Int("limit", 0, "Optional: maximum reports (0 = all)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	queue, err := models.NewStore(db).ListReportsInStatus(ctx, models.ReportStatusReview, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list reports: %v\n", err)
		os.Exit(1)
	}
	data, err := reports.ExportReviewQueue(queue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build workbook: %v\n", err)
		os.Exit(1)
	}

	if *bucket != "" {
		object := fmt.Sprintf("review-queue/%s.xlsx", time.Now().UTC().Format("20060102-150405"))
		if err := utils.UploadFileToGCS(ctx, *bucket, object, utils.XLSXContentType, data); err != nil {
			fmt.Fprintf(os.Stderr, "upload: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("uploaded %d reports to gs://%s/%s\n", len(queue), *bucket, object)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d reports to %s\n", len(queue), *out)
}
