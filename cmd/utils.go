package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/modcoretech/NG-Download-Manager/internal/channel"
	"github.com/modcoretech/NG-Download-Manager/internal/config"
)

// readActivePort reads the channel port written by the running relay
func readActivePort() int {
	data, err := os.ReadFile(config.GetPortPath())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return port
}

// saveActivePort writes the channel port for CLI and popup discovery
func saveActivePort(port int) error {
	return os.WriteFile(config.GetPortPath(), []byte(strconv.Itoa(port)), 0o644)
}

// removeActivePort cleans up the port file on exit
func removeActivePort() {
	if err := os.Remove(config.GetPortPath()); err != nil && !os.IsNotExist(err) {
		slog.Debug("remove port file failed", "err", err)
	}
}

func savePID() error {
	return os.WriteFile(config.GetPIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePID() {
	if err := os.Remove(config.GetPIDPath()); err != nil && !os.IsNotExist(err) {
		slog.Debug("remove pid file failed", "err", err)
	}
}

func readPID() int {
	data, err := os.ReadFile(config.GetPIDPath())
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}

// findAvailablePort tries ports starting from 'start' until one is available
func findAvailablePort(start int) (int, net.Listener) {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return port, ln
		}
	}
	return 0, nil
}

// listen binds the channel listener. A configured port is strict, otherwise
// the first free port from config.DefaultPort is used.
func listen(port int) (int, net.Listener, error) {
	if port > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return 0, nil, fmt.Errorf("could not bind to port %d: %w", port, err)
		}
		return port, ln, nil
	}
	port, ln := findAvailablePort(config.DefaultPort)
	if ln == nil {
		return 0, nil, errors.New("could not find available port")
	}
	return port, ln, nil
}

func resolveHostTarget() string {
	if host := strings.TrimSpace(globalHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv("NGDM_HOST"))
}

// resolveChannel returns the relay base URL and the token to use with it.
// Without --host the local relay is found through its port file.
func resolveChannel() (string, string, error) {
	target := resolveHostTarget()
	if target == "" {
		port := readActivePort()
		if port == 0 {
			return "", "", errors.New("ngdm relay is not running locally. start it with 'ngdm relay' or pass --host (or set NGDM_HOST)")
		}
		token, err := resolveToken(true)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("http://127.0.0.1:%d", port), token, nil
	}

	baseURL, err := resolveConnectBaseURL(target, false)
	if err != nil {
		return "", "", err
	}
	u, _ := url.Parse(baseURL)
	token, err := resolveToken(isLoopbackHost(u.Hostname()))
	if err != nil {
		return "", "", err
	}
	return baseURL, token, nil
}

// resolveToken picks the token from the flag, the environment, and for loopback
// relays the local token file.
func resolveToken(local bool) (string, error) {
	if token := strings.TrimSpace(globalToken); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(os.Getenv("NGDM_TOKEN")); token != "" {
		return token, nil
	}
	if !local {
		return "", errors.New("no token provided. use --token or set NGDM_TOKEN")
	}
	return channel.LoadOrCreateToken(config.GetTokenPath())
}

// newChannelClient connects to the relay selected by --host or the port file
func newChannelClient(logger *slog.Logger) (*channel.Client, error) {
	baseURL, token, err := resolveChannel()
	if err != nil {
		return nil, err
	}
	return channel.NewClient(baseURL, token, logger), nil
}

func resolveConnectBaseURL(target string, allowInsecureHTTP bool) (string, error) {
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid target: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported scheme %q (use http or https)", u.Scheme)
		}
		if u.Host == "" {
			return "", errors.New("invalid target: missing host")
		}
		if u.Scheme == "http" && !allowInsecureHTTP && !isLoopbackHost(u.Hostname()) {
			return "", errors.New("refusing insecure HTTP for non-loopback target. use https://")
		}
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
	}

	scheme := "https"
	if isLoopbackHost(hostnameFromTarget(target)) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, target), nil
}

func hostnameFromTarget(target string) string {
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	return target
}

func isLoopbackHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// parseIDs converts command line ids, rejecting anything that is not a positive integer
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(arg), "#"))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid download id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
