// Package flowfile loads declarative flow definitions (YAML, JSON or HCL) and compiles them
// into validated graphs whose steps call named workers.
//
// A YAML flow:
//
//	name: review
//	defaults:
//	  max_revisions: 2
//	options:
//	  max_iterations: 50
//	  step_timeout: 30s
//	states:
//	  - name: write
//	    steps:
//	      - worker: writer
//	        task: "draft about {{topic}}"
//	        save_to: draft
//	        requires: [topic]
//	      - incr: revision
//	    branch:
//	      - when: revision < max_revisions
//	        to: write
//	      - to: publish
//	  - name: publish
//	    steps:
//	      - worker: publisher
//	        task: "{{draft}}"
//	    next: END
//
// The HCL form uses state and step blocks with the same attribute names.
package flowfile
