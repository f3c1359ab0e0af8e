// Package script runs key scripts: files that press keys on a fresh
// calculator and check the display and memory indicator afterwards.
//
// A script in YAML:
//
//	name: chained operators
//	description: evaluation is left to right
//	steps:
//	  - keys: "2 + 3 x 4 ="
//	    expect:
//	      display: "20"
//	  - keys: "M+"
//	    expect:
//	      memory: "M: 20"
//
// The same script in CUE, either as the whole document or under a
// top-level "script" field:
//
//	script: {
//		name: "chained operators"
//		steps: [{keys: "2 + 3 x 4 =", expect: display: "20"}]
//	}
//
// Loader reads and validates scripts, Runner executes them and Watcher
// reruns them when their files change.
package script
