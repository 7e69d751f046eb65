// Package apsdiag diagnoses faults in air pressure system (APS) sensor
// batches: it cleans the readings, flags z-score outliers, trains a random
// forest fault classifier and ranks the sensors behind its decisions.
//
// Quick start:
//
//	d, err := apsdiag.New(apsdiag.WithTrees(200))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, _ := os.Open("aps_failure_training_set.csv")
//	defer f.Close()
//	diag, err := d.Analyze(ctx, f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(diag.Anomalies, diag.TopSensors[0].ID)
//
// A Diagnoser holds no per-batch state and is safe for concurrent use.
package apsdiag
