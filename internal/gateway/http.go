// ABOUTME: HTTP implementation of the Gateway contract against the HabitHive API
// ABOUTME: Routes status codes into the shared error taxonomy and decodes snake_case JSON

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
	"github.com/venkateshthallam/habithive/internal/session"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// HTTPClient talks to the HabitHive API over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu   sync.RWMutex
	auth Authorizer
}

// NewHTTPClient creates a client for baseURL (which should end in /api).
// Pass nil httpClient for one with DefaultTimeout.
func NewHTTPClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
		logger:  logger.With("component", "gateway"),
	}
}

// SetAuthorizer configures how authenticated calls obtain tokens. Until it is
// set every authenticated call fails with apperr.ErrUnauthorized.
func (c *HTTPClient) SetAuthorizer(auth Authorizer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = auth
}

func (c *HTTPClient) authorizer() Authorizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// call describes one HTTP exchange.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	out    any
}

// authed runs req with a bearer token via the Authorizer.
func (c *HTTPClient) authed(ctx context.Context, req call) error {
	auth := c.authorizer()
	if auth == nil {
		return fmt.Errorf("%s: %w", req.op, apperr.ErrUnauthorized)
	}
	return auth.Do(ctx, func(ctx context.Context, token string) error {
		return c.send(ctx, req, token)
	})
}

func (c *HTTPClient) send(ctx context.Context, req call, token string) error {
	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request: %w", req.op, err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", "op", req.op, "error", err)
		return &apperr.NetworkError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &apperr.NetworkError{Op: req.op, Err: fmt.Errorf("reading body: %w", err)}
	}

	c.logger.Debug("request completed",
		"op", req.op,
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", req.op, apperr.ErrUnauthorized)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &apperr.ServerError{Status: resp.StatusCode, Message: errorMessage(resp, body)}
	}

	if req.out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return c.decodingError(req.op, errors.New("empty body"))
	}
	if err := json.Unmarshal(body, req.out); err != nil {
		return c.decodingError(req.op, err)
	}
	return nil
}

func (c *HTTPClient) decodingError(op string, err error) error {
	c.logger.Error("response did not match contract", "op", op, "error", err)
	return &apperr.DecodingError{Op: op, Err: err}
}

// errorMessage extracts the server's message from an error response.
func errorMessage(resp *http.Response, body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if msg := eb.text(); msg != "" {
			return msg
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// SendOTP requests a one-time code for phone.
func (c *HTTPClient) SendOTP(ctx context.Context, phone string) error {
	return c.send(ctx, call{
		op:     "send otp",
		method: http.MethodPost,
		path:   "/auth/send-otp",
		body:   map[string]string{"phone": phone},
	}, "")
}

// Authenticate exchanges a credential for a token pair.
func (c *HTTPClient) Authenticate(ctx context.Context, cred Credential) (session.Tokens, error) {
	req := call{op: "authenticate", method: http.MethodPost}
	switch {
	case cred.IsApple():
		req.path = "/auth/apple-signin"
		req.body = map[string]string{"id_token": cred.AppleIDToken, "nonce": cred.Nonce}
	case cred.Phone != "" && cred.OTP != "":
		req.path = "/auth/verify-otp"
		req.body = map[string]string{"phone": cred.Phone, "otp": cred.OTP}
	default:
		return session.Tokens{}, apperr.Validationf("credential", "phone and otp, or an apple id token, are required")
	}

	var resp authResponse
	req.out = &resp
	if err := c.send(ctx, req, ""); err != nil {
		return session.Tokens{}, err
	}
	return resp.toTokens(), nil
}

// RefreshToken exchanges a refresh token for a new pair.
func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (session.Tokens, error) {
	var resp authResponse
	err := c.send(ctx, call{
		op:     "refresh",
		method: http.MethodPost,
		path:   "/auth/refresh",
		query:  url.Values{"refresh_token": {refreshToken}},
		out:    &resp,
	}, "")
	if err != nil {
		return session.Tokens{}, err
	}
	return resp.toTokens(), nil
}

// ListHabits returns the user's habits, with up to sinceDays of logs when
// includeLogs is set.
func (c *HTTPClient) ListHabits(ctx context.Context, includeLogs bool, sinceDays int) ([]model.HabitWithLogs, error) {
	query := url.Values{"include_logs": {strconv.FormatBool(includeLogs)}}
	if sinceDays > 0 {
		query.Set("days", strconv.Itoa(sinceDays))
	}

	var resp []habitWire
	if err := c.authed(ctx, call{
		op:     "list habits",
		method: http.MethodGet,
		path:   "/habits/",
		query:  query,
		out:    &resp,
	}); err != nil {
		return nil, err
	}

	habits := make([]model.HabitWithLogs, 0, len(resp))
	for _, w := range resp {
		hw := model.HabitWithLogs{Habit: w.toModel()}
		for _, l := range w.RecentLogs {
			entry := l.toModel()
			if entry.HabitID == "" {
				entry.HabitID = hw.Habit.ID
			}
			hw.Logs = append(hw.Logs, entry)
		}
		habits = append(habits, hw)
	}
	return habits, nil
}

// CreateHabit creates a habit.
func (c *HTTPClient) CreateHabit(ctx context.Context, req model.CreateHabitRequest) (model.Habit, error) {
	var resp habitWire
	if err := c.authed(ctx, call{
		op:     "create habit",
		method: http.MethodPost,
		path:   "/habits/",
		body:   newCreateHabitWire(req),
		out:    &resp,
	}); err != nil {
		return model.Habit{}, err
	}
	return resp.toModel(), nil
}

// DeleteHabit deletes a habit and its logs on the server.
func (c *HTTPClient) DeleteHabit(ctx context.Context, habitID string) error {
	return c.authed(ctx, call{
		op:     "delete habit",
		method: http.MethodDelete,
		path:   "/habits/" + url.PathEscape(habitID),
	})
}

// LogHabit records today's value for a habit. The server decides which day
// "today" is and upserts the entry.
func (c *HTTPClient) LogHabit(ctx context.Context, habitID string, value int) (model.LogEntry, error) {
	var resp habitLogWire
	if err := c.authed(ctx, call{
		op:     "log habit",
		method: http.MethodPost,
		path:   "/habits/" + url.PathEscape(habitID) + "/log",
		body:   valueRequest{Value: value},
		out:    &resp,
	}); err != nil {
		return model.LogEntry{}, err
	}
	entry := resp.toModel()
	if entry.HabitID == "" {
		entry.HabitID = habitID
	}
	return entry, nil
}

// DeleteHabitLog removes the entry for day, or today's when day is nil.
func (c *HTTPClient) DeleteHabitLog(ctx context.Context, habitID string, day *daykey.Key) error {
	var query url.Values
	if day != nil && !day.IsZero() {
		query = url.Values{"log_date": {day.String()}}
	}
	return c.authed(ctx, call{
		op:     "delete habit log",
		method: http.MethodDelete,
		path:   "/habits/" + url.PathEscape(habitID) + "/log",
		query:  query,
	})
}

// GetProfile returns the signed-in user's profile.
func (c *HTTPClient) GetProfile(ctx context.Context) (model.Profile, error) {
	var resp profileWire
	if err := c.authed(ctx, call{
		op:     "get profile",
		method: http.MethodGet,
		path:   "/profiles/me",
		out:    &resp,
	}); err != nil {
		return model.Profile{}, err
	}
	return resp.toModel(), nil
}

// UpdateProfile patches the fields set in upd and returns the result.
func (c *HTTPClient) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error) {
	var resp profileWire
	if err := c.authed(ctx, call{
		op:     "update profile",
		method: http.MethodPatch,
		path:   "/profiles/me",
		body:   newProfileUpdateWire(upd),
		out:    &resp,
	}); err != nil {
		return model.Profile{}, err
	}
	return resp.toModel(), nil
}

// ListHives returns the hives the user belongs to.
func (c *HTTPClient) ListHives(ctx context.Context) ([]model.Hive, error) {
	var resp []hiveWire
	if err := c.authed(ctx, call{
		op:     "list hives",
		method: http.MethodGet,
		path:   "/hives/",
		out:    &resp,
	}); err != nil {
		return nil, err
	}
	hives := make([]model.Hive, 0, len(resp))
	for _, w := range resp {
		hives = append(hives, w.toModel())
	}
	return hives, nil
}

// GetHiveDetail returns a hive with its members and recent member days.
func (c *HTTPClient) GetHiveDetail(ctx context.Context, hiveID string) (model.HiveDetail, error) {
	var resp hiveDetailWire
	if err := c.authed(ctx, call{
		op:     "get hive",
		method: http.MethodGet,
		path:   "/hives/" + url.PathEscape(hiveID),
		out:    &resp,
	}); err != nil {
		return model.HiveDetail{}, err
	}
	return resp.toModel(), nil
}

// CreateHiveFromHabit creates a hive that copies a habit's type, target
// and color. The caller becomes its owner.
func (c *HTTPClient) CreateHiveFromHabit(ctx context.Context, req model.HiveFromHabitRequest) (model.Hive, error) {
	var resp hiveWire
	if err := c.authed(ctx, call{
		op:     "create hive",
		method: http.MethodPost,
		path:   "/hives/from-habit",
		body:   newHiveFromHabitWire(req),
		out:    &resp,
	}); err != nil {
		return model.Hive{}, err
	}
	return resp.toModel(), nil
}

// DeleteHive deletes a hive the caller owns.
func (c *HTTPClient) DeleteHive(ctx context.Context, hiveID string) error {
	return c.authed(ctx, call{
		op:     "delete hive",
		method: http.MethodDelete,
		path:   "/hives/" + url.PathEscape(hiveID),
	})
}

// LogHiveDay records today's value for the caller in a hive.
func (c *HTTPClient) LogHiveDay(ctx context.Context, hiveID string, value int) (model.HiveMemberDay, error) {
	var resp hiveMemberDayWire
	if err := c.authed(ctx, call{
		op:     "log hive day",
		method: http.MethodPost,
		path:   "/hives/" + url.PathEscape(hiveID) + "/log",
		body:   valueRequest{Value: value},
		out:    &resp,
	}); err != nil {
		return model.HiveMemberDay{}, err
	}
	day := resp.toModel()
	if day.HiveID == "" {
		day.HiveID = hiveID
	}
	return day, nil
}

// JoinHive redeems an invite code.
func (c *HTTPClient) JoinHive(ctx context.Context, code string) (model.JoinResult, error) {
	var resp joinResponse
	if err := c.authed(ctx, call{
		op:     "join hive",
		method: http.MethodPost,
		path:   "/hives/join",
		body:   map[string]string{"code": code},
		out:    &resp,
	}); err != nil {
		return model.JoinResult{}, err
	}
	return model.JoinResult{Success: resp.Success, HiveID: resp.HiveID, Message: resp.Message}, nil
}

// CreateHiveInvite creates an invite code. Zero ttl or maxUses select the
// server defaults.
func (c *HTTPClient) CreateHiveInvite(ctx context.Context, hiveID string, ttl time.Duration, maxUses int) (model.Invite, error) {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if maxUses <= 0 {
		maxUses = DefaultInviteMaxUses
	}

	var resp inviteWire
	if err := c.authed(ctx, call{
		op:     "create invite",
		method: http.MethodPost,
		path:   "/hives/" + url.PathEscape(hiveID) + "/invite",
		body:   inviteRequest{TTLMinutes: max(int(ttl/time.Minute), 1), MaxUses: maxUses},
		out:    &resp,
	}); err != nil {
		return model.Invite{}, err
	}
	return resp.toModel(), nil
}

// ActivityFeed returns recent events, newest first. A non-positive limit
// uses DefaultActivityLimit; larger than MaxActivityLimit is capped.
func (c *HTTPClient) ActivityFeed(ctx context.Context, hiveID string, limit int) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	query := url.Values{"limit": {strconv.Itoa(min(limit, MaxActivityLimit))}}
	if hiveID != "" {
		query.Set("hive_id", hiveID)
	}

	var resp []activityEventWire
	if err := c.authed(ctx, call{
		op:     "activity feed",
		method: http.MethodGet,
		path:   "/activity/feed",
		query:  query,
		out:    &resp,
	}); err != nil {
		return nil, err
	}
	events := make([]model.ActivityEvent, 0, len(resp))
	for _, w := range resp {
		events = append(events, w.toModel())
	}
	return events, nil
}

var _ Gateway = (*HTTPClient)(nil)
