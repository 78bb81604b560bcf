// Command sqllint reports inline SQL constants without a unique audit marker.
package main

import (
	"flag"
	"fmt"
	"os"

	"studio/internal/sqllint"
)

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	linter := sqllint.New()
	var violations []sqllint.Violation
	for _, target := range targets {
		vs, err := linter.Walk(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, vs...)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: missing or duplicate SQL audit markers")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}
