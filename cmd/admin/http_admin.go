package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	key := fs.String("key", "", "single statistic key (optional)")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/statistics"
	if *key != "" {
		u += "?key=" + url.QueryEscape(*key)
	}
	req, _ := http.NewRequest(http.MethodGet, u, nil)
	doRequest(req, 5*time.Second)
}

func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/save"
	req, _ := http.NewRequest(http.MethodPost, u, nil)
	doRequest(req, 10*time.Second)
}

func doRequest(req *http.Request, timeout time.Duration) {
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fail(1, "request:", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
