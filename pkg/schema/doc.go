// Package schema declares the typed inputs a flow expects in its initial Context.
//
// A schema maps keys to types written as short strings:
//
//	inputs:
//	  topic: string
//	  retries: int?
//	  tags: "[string]"
//
// Built-in types are string, int, float, bool, map and any. "[T]" is a list of T and a
// trailing "?" makes the key optional. Custom types are registered in code with Custom.
//
//	s, err := schema.ParseTypeMap(map[string]string{"topic": "string", "retries": "int?"})
//	if err := schema.Validate(s, c); err != nil {
//	    // errors.Is(err, domain.ErrInvalidInput)
//	}
package schema
