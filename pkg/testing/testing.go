package testing

import (
	"os"
	"path"
	"runtime"
)

func init() {
	// moves the test process to the project root so relative paths (logs/,
	// sqlite files) resolve the same way as for the server binary
	//
	//   import (
	//     _ "liyu1981.xyz/device-events-service/pkg/testing"
	//   )

	_, filename, _, _ := runtime.Caller(0)
	dir := path.Join(path.Dir(filename), "..", "..")
	if err := os.Chdir(dir); err != nil {
		panic(err)
	}
}
