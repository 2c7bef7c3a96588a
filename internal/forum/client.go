package forum

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/scraper"
)

// listingLimit is the maximum page size the API accepts.
const listingLimit = 100

var (
	errLogin    = apperrors.NewWrapper("forum", "login")
	errMe       = apperrors.NewWrapper("forum", "me")
	errListing  = apperrors.NewWrapper("forum", "listing")
	errReply    = apperrors.NewWrapper("forum", "reply")
	errMarkRead = apperrors.NewWrapper("forum", "mark_read")
)

// Credentials identify the script app and the bot account.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Config configures a Client.
type Config struct {
	Credentials Credentials
	// AuthURL hosts /api/v1/access_token (https://www.reddit.com).
	AuthURL string
	// APIURL hosts the OAuth API (https://oauth.reddit.com).
	APIURL string
	// RefreshMargin renews the token this long before it expires.
	RefreshMargin time.Duration
}

// Client is an authenticated Reddit API client.
type Client struct {
	http    *scraper.Client
	once    *scraper.Client // single attempt, for replies
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ Replier = (*Client)(nil)

// NewClient creates a client. The scraper client must be configured with a
// fixed, descriptive User-Agent as the API requires.
func NewClient(httpClient *scraper.Client, cfg Config) *Client {
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{http: httpClient, once: httpClient.NoRetry(), cfg: cfg, now: time.Now}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// accessToken returns a valid bearer token, logging in when needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(c.cfg.RefreshMargin).Before(c.expires) {
		return c.token, nil
	}

	creds := c.cfg.Credentials
	form := url.Values{
		"grant_type": {"password"},
		"username":   {creds.Username},
		"password":   {creds.Password},
	}
	header := http.Header{"Authorization": {basicAuth(creds.ClientID, creds.ClientSecret)}}

	var resp tokenResponse
	if err := c.http.PostForm(ctx, c.cfg.AuthURL+"/api/v1/access_token", form, header, &resp); err != nil {
		return "", errLogin.Wrap(err, "access token")
	}
	// Bad credentials come back as 200 with an error field.
	if resp.Error != "" || resp.AccessToken == "" {
		return "", errLogin.Wrapf(apperrors.ErrUnauthorized, "access token: %s", resp.Error)
	}

	c.token = resp.AccessToken
	c.expires = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// authorized runs fn with a bearer header, re-authenticating once on 401.
func (c *Client) authorized(ctx context.Context, fn func(header http.Header) error) error {
	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		err = fn(http.Header{"Authorization": {"bearer " + token}})
		if attempt == 0 && errors.Is(err, apperrors.ErrUnauthorized) {
			c.invalidateToken()
			continue
		}
		return err
	}
}

// Me returns the authenticated account name.
func (c *Client) Me(ctx context.Context) (string, error) {
	var me struct {
		Name string `json:"name"`
	}
	err := c.authorized(ctx, func(h http.Header) error {
		return c.http.GetJSON(ctx, c.cfg.APIURL+"/api/v1/me?raw_json=1", h, &me)
	})
	if err != nil {
		return "", errMe.Wrap(err, "account")
	}
	return me.Name, nil
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string    `json:"kind"`
			Data thingData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type thingData struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	SelfText   string `json:"selftext"`
	Permalink  string `json:"permalink"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	LinkTitle  string `json:"link_title"`
	Context    string `json:"context"`
	WasComment bool   `json:"was_comment"`
}

func (c *Client) getListing(ctx context.Context, path string) (*listing, error) {
	var l listing
	endpoint := fmt.Sprintf("%s%s?limit=%d&raw_json=1", c.cfg.APIURL, path, listingLimit)
	err := c.authorized(ctx, func(h http.Header) error {
		return c.http.GetJSON(ctx, endpoint, h, &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// NewSubmissions returns the newest submissions in subreddit, oldest first.
func (c *Client) NewSubmissions(ctx context.Context, subreddit string) ([]Submission, error) {
	l, err := c.getListing(ctx, "/r/"+url.PathEscape(subreddit)+"/new")
	if err != nil {
		return nil, errListing.Wrapf(err, "new submissions in r/%s", subreddit)
	}

	subs := make([]Submission, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		d := child.Data
		subs = append(subs, Submission{
			ID:        d.ID,
			FullName:  fullName(d, prefixSubmission),
			Title:     d.Title,
			SelfText:  d.SelfText,
			Permalink: d.Permalink,
			Author:    d.Author,
		})
	}
	slices.Reverse(subs)
	return subs, nil
}

// UnreadInbox returns unread inbox items, oldest first.
func (c *Client) UnreadInbox(ctx context.Context) ([]InboxMessage, error) {
	l, err := c.getListing(ctx, "/message/unread")
	if err != nil {
		return nil, errListing.Wrap(err, "unread inbox")
	}

	msgs := make([]InboxMessage, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		d := child.Data
		msg := InboxMessage{
			ID:      d.ID,
			Body:    d.Body,
			Author:  d.Author,
			Context: d.Context,
		}
		switch {
		case child.Kind == "t1" || d.WasComment:
			msg.Kind = KindComment
			msg.FullName = fullName(d, prefixComment)
			msg.SubmissionID = submissionIDFromContext(d.Context)
			msg.SubmissionTitle = d.LinkTitle
		default:
			msg.Kind = KindMessage
			msg.FullName = fullName(d, prefixMessage)
		}
		msgs = append(msgs, msg)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

type commentResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
	} `json:"json"`
}

// Reply posts body as a reply to the thing named fullName. It is never
// retried; a retried comment could be posted twice.
func (c *Client) Reply(ctx context.Context, fullName, body string) error {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {fullName},
		"text":     {body},
	}
	var resp commentResponse
	err := c.authorized(ctx, func(h http.Header) error {
		return c.once.PostForm(ctx, c.cfg.APIURL+"/api/comment", form, h, &resp)
	})
	if err != nil {
		return errReply.Wrap(err, fullName)
	}
	if len(resp.JSON.Errors) > 0 {
		return errReply.Wrap(apiErrors(resp.JSON.Errors), fullName)
	}
	return nil
}

// MarkRead marks an inbox item read.
func (c *Client) MarkRead(ctx context.Context, fullName string) error {
	form := url.Values{"id": {fullName}}
	err := c.authorized(ctx, func(h http.Header) error {
		return c.http.PostForm(ctx, c.cfg.APIURL+"/api/read_message", form, h, nil)
	})
	if err != nil {
		return errMarkRead.Wrap(err, fullName)
	}
	return nil
}

// apiErrors converts [["CODE", "message", "field"], ...] into an error.
func apiErrors(list [][]string) error {
	errs := make([]error, 0, len(list))
	for _, e := range list {
		code, msg := "", ""
		if len(e) > 0 {
			code = e[0]
		}
		if len(e) > 1 {
			msg = e[1]
		}
		err := fmt.Errorf("%s: %s", code, msg)
		if code == "RATELIMIT" {
			err = fmt.Errorf("%w: %s", apperrors.ErrRateLimitExceeded, msg)
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func fullName(d thingData, prefix string) string {
	if d.Name != "" {
		return d.Name
	}
	return prefix + d.ID
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
