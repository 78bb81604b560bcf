package sqlinline

import (
	"testing"

	"studio/internal/sqllint"
)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	vs, err := sqllint.New().Walk(".")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, v := range vs {
		t.Errorf("%s", v)
	}
}
