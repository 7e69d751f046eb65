package apsdiag_test

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/crimson-sun/apsdiag/internal/engine/testdata"
	"github.com/crimson-sun/apsdiag/pkg/apsdiag"
)

func Example() {
	var csv bytes.Buffer
	if err := testdata.WriteCSV(&csv, testdata.Generate(500, 42)); err != nil {
		log.Fatal(err)
	}

	d, err := apsdiag.New(apsdiag.WithTrees(20))
	if err != nil {
		log.Fatal(err)
	}
	diag, err := d.Analyze(context.Background(), &csv)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("samples: %d, features: %d\n", diag.Samples, diag.Features)
	fmt.Printf("labeled: %v, top sensors: %d\n", diag.Labeled, len(diag.TopSensors))
	// Output:
	// samples: 500, features: 16
	// labeled: true, top sensors: 10
}
