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
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: 5 * time.Second}
	b, err := adminGet(cl, *baseURL, "/admin/v1/state")
	if len(b) > 0 {
		fmt.Println(string(b))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
}

// objectCmd toggles an object: admin object -id door deactivate
func objectCmd(args []string) {
	fs := flag.NewFlagSet("object", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	id := fs.String("id", "", "object id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*id) == "" || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin object -id <object_id> activate|deactivate")
		os.Exit(2)
	}
	verb := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	if verb != "activate" && verb != "deactivate" {
		fmt.Fprintln(os.Stderr, "unknown verb:", verb)
		os.Exit(2)
	}

	cl := &http.Client{Timeout: 10 * time.Second}
	b, err := adminPost(cl, *baseURL, "/admin/v1/objects/"+url.PathEscape(strings.TrimSpace(*id))+"/"+verb)
	if len(b) > 0 {
		fmt.Println(string(b))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
}

func adminGet(cl *http.Client, baseURL, path string) ([]byte, error) {
	return adminDo(cl, http.MethodGet, baseURL, path)
}

func adminPost(cl *http.Client, baseURL, path string) ([]byte, error) {
	return adminDo(cl, http.MethodPost, baseURL, path)
}

func adminDo(cl *http.Client, method, baseURL, path string) ([]byte, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return b, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return b, nil
}
