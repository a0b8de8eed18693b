package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func Test_Main(t *testing.T) {
	tmp := t.TempDir()
	port := 40000 + int(time.Now().UnixNano()%10000)
	os.Args = []string{"jobvault",
		"--store=" + filepath.Join(tmp, "store"),
		"--journal=" + filepath.Join(tmp, "journal.db"),
		fmt.Sprintf("--listen=127.0.0.1:%d", port),
		"--dbg",
	}

	done := make(chan struct{})
	go func() {
		<-done
		e := syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		require.NoError(t, e)
	}()

	finished := make(chan struct{})
	go func() {
		main()
		close(finished)
	}()

	defer func() {
		close(done)
		<-finished
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/status/no/such/job", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_setupLogsToStdout(t *testing.T) {
	opts.Log.Enabled = false

	out := setupLogs()
	assert.Equal(t, os.Stdout, out)
}

func Test_setupLogsToFile(t *testing.T) {
	opts.Log.Enabled = true
	opts.Log.Filename = filepath.Join(t.TempDir(), "jobvault.log")
	opts.Log.MaxSize = 10
	opts.Log.MaxBackups = 3
	defer func() { opts.Log.Enabled = false }()

	out := setupLogs()
	lj, ok := out.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, opts.Log.Filename, lj.Filename)
	assert.Equal(t, 10, lj.MaxSize)
	assert.Equal(t, 3, lj.MaxBackups)
}
