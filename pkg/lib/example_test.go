package lib_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/jobwatch/pkg/lib"
)

// This example shows how to run an analysis using the fake service for testing.
func Example_testing() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "jobwatch-example-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(ctx, lib.Config{
		DBPath:            filepath.Join(dir, "jobwatch.db"),
		Service:           lib.ServiceFake,
		FakeQueueDuration: time.Millisecond,
		FakeJobDuration:   50 * time.Millisecond,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	report, err := client.Analyze(ctx, lib.Background{
		UndergraduateUniversity: "Tsinghua University",
		UndergraduateMajor:      "Computer Science",
		GPA:                     3.7,
		GPAScale:                "4.0",
		GraduationYear:          2025,
		TargetCountries:         []string{"US"},
		TargetMajors:            []string{"Computer Science"},
		TargetDegreeType:        "Master",
	}, &lib.AnalyzeOpts{PollInterval: 10 * time.Millisecond})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Radar scores: %d\n", len(report.RadarScores))

	// Output:
	// Radar scores: 5
}

// This example shows how to handle errors using errors.Is.
func Example_errorHandling() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "jobwatch-example-errors-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(ctx, lib.Config{
		DBPath:  filepath.Join(dir, "jobwatch.db"),
		Service: lib.ServiceFake,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	_, err = client.Status(ctx, "nonexistent")
	if errors.Is(err, lib.ErrNotFound) {
		fmt.Println("Task not found")
	}

	// Output:
	// Task not found
}
