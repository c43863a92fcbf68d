// Package broker implements the filesystem message channel transport
// (spec §4.4): one directory per channel under a shared root, atomic
// tmp-then-rename writes, delete-after-read receives, and fsnotify-assisted
// polling to cut tail latency without abandoning the polling contract.
package broker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	domainbroker "github.com/ngoclaw/deskflow/internal/domain/broker"
)

// DefaultPollInterval matches spec §4.4's stated polling default.
const DefaultPollInterval = 100 * time.Millisecond

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Sanitize normalizes a request_id into the filename-safe form both the
// writer and reader must agree on (spec §4.4 Sanitization): lowercase,
// non-alphanumerics collapsed to "_", truncated to 128 chars.
func Sanitize(requestID string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(requestID), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "anon"
	}
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}

// messageTypeByChannel maps a channel directory name to the envelope's
// message_type, since Send/Receive operate in terms of channels only.
var messageTypeByChannel = map[string]domainbroker.MessageType{
	domainbroker.ChannelProtocols:           domainbroker.TypeProtocol,
	domainbroker.ChannelStatus:              domainbroker.TypeProtocolStatus,
	domainbroker.ChannelVisualNavRequest:    domainbroker.TypeVisualNavRequest,
	domainbroker.ChannelVisualNavResponse:   domainbroker.TypeVisualNavResponse,
	domainbroker.ChannelVisualStateRequest:  domainbroker.TypeVisualStateRequest,
	domainbroker.ChannelVisualStateResponse: domainbroker.TypeVisualStateResponse,
	domainbroker.ChannelVisualActionCmd:     domainbroker.TypeVisualActionCmd,
	domainbroker.ChannelVisualActionResult:  domainbroker.TypeVisualActionResult,
}

// Client is the filesystem-backed broker transport, shared by both the
// planner and executor processes pointed at the same root.
// 基于文件系统的消息代理，两个进程共享同一个根目录。
type Client struct {
	root         string
	pollInterval time.Duration
	logger       *zap.Logger
	watcher      *fsnotify.Watcher
}

// New creates the channel directory tree under root (if absent) and starts
// an fsnotify watcher on each channel directory to shorten the otherwise
// fixed-interval poll.
func New(root string, pollInterval time.Duration, logger *zap.Logger) (*Client, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	for _, ch := range domainbroker.AllChannels {
		if err := os.MkdirAll(filepath.Join(root, ch), 0o755); err != nil {
			return nil, apperr.Wrap(apperr.DriverFailure, "creating broker channel directory", err)
		}
	}
	c := &Client{root: root, pollInterval: pollInterval, logger: logger}
	if w, err := fsnotify.NewWatcher(); err == nil {
		for _, ch := range domainbroker.AllChannels {
			_ = w.Add(filepath.Join(root, ch))
		}
		c.watcher = w
	} else if logger != nil {
		logger.Warn("fsnotify unavailable, falling back to fixed-interval polling only", zap.Error(err))
	}
	return c, nil
}

// Close releases the fsnotify watcher, if any.
func (c *Client) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// Send writes payload to channel as a new message file, atomically
// (spec §4.4 Contract: tmp-then-rename).
func (c *Client) Send(ctx context.Context, channel string, payload any, requestID string) error {
	msgType, ok := messageTypeByChannel[channel]
	if !ok {
		return apperr.Newf(apperr.ValidationFailure, "broker: unknown channel %q", channel)
	}
	msg, err := domainbroker.Encode(msgType, requestID, time.Now().UnixMilli(), payload)
	if err != nil {
		return apperr.Wrap(apperr.DriverFailure, "broker: encoding message", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return apperr.Wrap(apperr.DriverFailure, "broker: marshaling envelope", err)
	}

	dir := filepath.Join(c.root, channel)
	name := filename(requestID)
	tmpPath := filepath.Join(dir, name+".tmp")
	finalPath := filepath.Join(dir, name+".json")

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return apperr.Wrap(apperr.DriverFailure, "broker: writing temp message file", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return apperr.Wrap(apperr.DriverFailure, "broker: renaming message file into place", err)
	}
	return nil
}

// Receive polls channel for the next message, optionally filtered to
// requestID, deleting it upon successful read (spec §4.4 Contract:
// at-most-once delivery). timeoutMs == 0 performs exactly one check with
// no wait.
func (c *Client) Receive(ctx context.Context, channel string, timeoutMs int, requestID string) ([]byte, bool, error) {
	dir := filepath.Join(c.root, channel)
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	for {
		payload, ok, err := c.tryRead(dir, requestID)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return payload, true, nil
		}
		if timeoutMs <= 0 || !time.Now().Before(deadline) {
			return nil, false, nil
		}

		wait := c.pollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, false, apperr.New(apperr.Cancelled, "broker receive cancelled")
		case <-c.notifyOrTimer(wait):
		}
	}
}

func (c *Client) notifyOrTimer(wait time.Duration) <-chan time.Time {
	if c.watcher == nil {
		return time.After(wait)
	}
	out := make(chan time.Time, 1)
	timer := time.NewTimer(wait)
	go func() {
		select {
		case <-c.watcher.Events:
		case <-timer.C:
		}
		timer.Stop()
		out <- time.Now()
	}()
	return out
}

func (c *Client) tryRead(dir, requestID string) ([]byte, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.DriverFailure, "broker: listing channel directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // FIFO: epoch-ms prefix sorts chronologically

	wantSuffix := ""
	if requestID != "" {
		wantSuffix = "_" + Sanitize(requestID) + ".json"
	}

	for _, name := range names {
		if wantSuffix != "" && !strings.HasSuffix(name, wantSuffix) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // raced with another consumer
			}
			return nil, false, apperr.Wrap(apperr.DriverFailure, "broker: reading message file", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, false, apperr.Wrap(apperr.DriverFailure, "broker: deleting consumed message file", err)
		}
		var msg domainbroker.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, false, apperr.Wrap(apperr.MalformedAction, "broker: decoding message envelope", err)
		}
		return msg.Payload, true, nil
	}
	return nil, false, nil
}

func filename(requestID string) string {
	ts := time.Now().UnixMilli()
	return strconv.FormatInt(ts, 10) + "_" + Sanitize(requestID)
}
