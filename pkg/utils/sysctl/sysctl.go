package sysctl

import (
	"os"
	"path"
	"strings"
)

const sysctlRoot = "/proc/sys"

// Get returns the value of the sysctl key specified by name.
func Get(name string) (string, error) {
	// "net.ipv4.tcp_congestion_control" translates into
	// "/proc/sys/net/ipv4/tcp_congestion_control".
	relativeSysctlPath := strings.Replace(name, ".", "/", -1)
	sysctlPath := path.Join(sysctlRoot, relativeSysctlPath)

	byteContent, err := os.ReadFile(sysctlPath)
	if err != nil {
		return "", err
	}

	// As the sys file system represent single values as files, they are
	// terminated with a newline. We trim trailing newline, if present.
	content := strings.TrimSuffix(string(byteContent), "\n")

	return content, nil
}

// GetList returns the whitespace separated values of the sysctl key
// specified by name.
func GetList(name string) ([]string, error) {
	content, err := Get(name)
	if err != nil {
		return nil, err
	}

	return strings.Fields(content), nil
}
