package sqlite

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	sqlitedriver "modernc.org/sqlite"
)

// foldCaseFunc lower-cases text with Unicode rules. The built-in LOWER only
// folds ASCII letters.
const foldCaseFunc = "fold_case"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the Go-side SQL functions for every connection
// the driver opens afterwards.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlitedriver.RegisterDeterministicScalarFunction(foldCaseFunc, 1, foldCase)
	})
	return registerErr
}

func foldCase(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}
