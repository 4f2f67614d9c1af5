// Package harness runs marble scenarios described in files.
//
// A scenario declares sources, observers and expectations. The harness
// builds them on a fresh scheduler, flushes it, and checks each expectation
// with the assertion package.
//
// # Scenario Format
//
// Scenarios are YAML files (or CUE files with the same field names):
//
//	name: cold_replay
//	description: "cold source replays per subscription"
//	frame_time_factor: 1
//	max_frame_value: 1000
//	sources:
//	  - name: src
//	    kind: cold
//	    marble: "-a-b-|"
//	    values: { a: 1, b: 2 }
//	observe:
//	  - name: first
//	    source: src
//	    subscription: "^"
//	  - name: late
//	    source: src
//	    subscription: "---^"
//	expect:
//	  - observe: first
//	    marble: "-a-b-|"
//	    values: { a: 1, b: 2 }
//	  - source: src
//	    subscriptions: ["^----!", "---^----!"]
//
// A value of the form { marble: "-x|", values: {...}, error: ... } is a
// nested diagram. Sources emit it as an inner observable, and observers
// record its materialized messages.
//
// # Deterministic Testing
//
// The scheduler ID is the scenario name and time is virtual, so repeated
// runs produce byte-identical snapshots and fingerprints. Snapshots use
// canonical JSON and are compared against testdata/golden with goldie.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cold_replay.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
