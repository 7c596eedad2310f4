/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing graphs.

It allows developers to define state machine flows using a type-safe, fluent builder pattern
instead of relying on external YAML or HCL flow files. This is particularly useful for dynamic graph
generation, unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	g, err := dsl.New("review").
		Add("write").Call("writer", writer, "draft about {{topic}}", "draft").
		Branch(route, "write", "publish").
		Add("publish").Func("publish", publish, "draft").
		End().
		Build()
	if err != nil {
		log.Fatal(err)
	}

	eng, err := conductor.New(g)
*/
package dsl
