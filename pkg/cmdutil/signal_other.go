//go:build !unix

package cmdutil

import "os"

func terminationSignal(*os.ProcessState) string {
	return ""
}
