package refresh

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

// Probe strategy tags recorded on every LinkEvaluation.
const (
	ProbeHEAD        = "HEAD"
	ProbeGET         = "GET"
	ProbeHEADSpecial = "HEAD-SPECIAL"
	ProbeGETSpecial  = "GET-SPECIAL"
)

const (
	defaultMaxLinks = 20
	headTimeout     = 5 * time.Second
	getTimeout      = 10 * time.Second

	// privateFileIssue marks access-gated cloud files that exist but are
	// not publicly readable. They must not be reported as broken.
	privateFileIssue = "Private file (access restricted)"
)

// statusIssues maps HTTP status codes to human-readable issue messages.
var statusIssues = map[int]string{
	http.StatusBadRequest:          "Bad request",
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "Access forbidden",
	http.StatusNotFound:            "Page not found",
	http.StatusRequestTimeout:      "Request timed out",
	http.StatusGone:                "Page permanently removed",
	http.StatusTooManyRequests:     "Too many requests (rate limited)",
	http.StatusInternalServerError: "Server error",
	http.StatusBadGateway:          "Bad gateway",
	http.StatusServiceUnavailable:  "Service unavailable",
	http.StatusGatewayTimeout:      "Gateway timeout",
}

// cloudHosts are providers where a 403/401 on an existing file means "access
// gated", not "broken".
var cloudHosts = []string{
	"drive.google.com",
	"docs.google.com",
	"dropbox.com",
	"1drv.ms",
	"onedrive.live.com",
	"sharepoint.com",
	"s3.amazonaws.com",
}

// specialHosts additionally covers document hosts that need the looser
// special-link probe but whose 403s are genuine failures.
var specialHosts = append([]string{"raw.githubusercontent.com"}, cloudHosts...)

// LinkEvaluator determines link reachability using adaptive request
// strategies for ordinary vs. document/cloud-storage URLs. Probes run
// sequentially to bound simultaneous outbound connections.
type LinkEvaluator struct {
	client   *http.Client
	maxLinks int
}

// NewLinkEvaluator returns a LinkEvaluator that follows a bounded number of
// redirects and blocks connections to private/reserved IP ranges. maxLinks
// caps how many links a single Evaluate call will probe.
func NewLinkEvaluator(maxLinks int) *LinkEvaluator {
	return newLinkEvaluator(maxLinks, &http.Transport{
		DialContext:         safeDialer().DialContext,
		MaxConnsPerHost:     4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	})
}

func newLinkEvaluator(maxLinks int, transport http.RoundTripper) *LinkEvaluator {
	if maxLinks <= 0 {
		maxLinks = defaultMaxLinks
	}
	return &LinkEvaluator{
		maxLinks: maxLinks,
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: safeRedirectPolicy,
		},
	}
}

// Evaluate probes each link and reports whether it is reachable. Input is
// truncated to the configured cap. No per-link failure ever propagates; a
// failed probe degrades to a working=false result with a best-effort issue
// message.
func (e *LinkEvaluator) Evaluate(ctx context.Context, links []model.Link) []model.LinkEvaluation {
	limit := min(len(links), e.maxLinks)
	links = links[:limit]

	results := make([]model.LinkEvaluation, 0, limit)
	for _, link := range links {
		results = append(results, e.evaluateOne(ctx, link))
	}
	return results
}

func (e *LinkEvaluator) evaluateOne(ctx context.Context, link model.Link) model.LinkEvaluation {
	eval := model.LinkEvaluation{Link: link, Method: ProbeHEAD}

	parsed, err := url.Parse(link.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		eval.Issue = "Invalid URL"
		return eval
	}

	if isSpecialURL(parsed) {
		e.checkSpecial(ctx, &eval, parsed)
	} else {
		e.checkOrdinary(ctx, &eval, link.URL)
	}
	return eval
}

// checkOrdinary probes a regular link: HEAD first, escalating to a ranged GET
// when the server rejects lightweight probes (401/403/405) or the connection
// failed in a retriable way.
func (e *LinkEvaluator) checkOrdinary(ctx context.Context, eval *model.LinkEvaluation, link string) {
	status, err := e.probe(ctx, http.MethodHead, link, headTimeout)
	eval.Method = ProbeHEAD

	if err != nil {
		if retriableNetError(err) {
			e.getFallback(ctx, eval, link, false, false)
			return
		}
		eval.Issue = networkIssue(err)
		return
	}

	eval.Status = status
	switch {
	case status >= 200 && status < 400:
		eval.Working = true
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusMethodNotAllowed:
		// Some servers reject HEAD but serve full requests.
		e.getFallback(ctx, eval, link, false, false)
	default:
		eval.Issue = statusIssue(status)
	}
}

// checkSpecial probes a document/cloud-storage link with looser acceptance:
// an access-gated file is reported as working because it exists.
func (e *LinkEvaluator) checkSpecial(ctx context.Context, eval *model.LinkEvaluation, parsed *url.URL) {
	link := canonicalizeDriveURL(parsed)
	gated := isCloudHost(parsed.Hostname())

	status, err := e.probe(ctx, http.MethodHead, link, headTimeout)
	eval.Method = ProbeHEADSpecial

	if err != nil {
		if retriableNetError(err) {
			e.getFallback(ctx, eval, link, true, gated)
			return
		}
		eval.Issue = networkIssue(err)
		return
	}

	eval.Status = status
	switch {
	case status >= 200 && status < 400:
		eval.Working = true
	case status == http.StatusForbidden && gated:
		eval.Status = http.StatusOK
		eval.Working = true
		eval.Issue = privateFileIssue
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusMethodNotAllowed:
		e.getFallback(ctx, eval, link, true, gated)
	default:
		eval.Issue = statusIssue(status)
	}
}

// getFallback issues the full-content probe: a GET with a partial byte range,
// body discarded immediately. gated relaxes auth failures for cloud hosts
// where a 401 means the file exists but is access restricted.
func (e *LinkEvaluator) getFallback(ctx context.Context, eval *model.LinkEvaluation, link string, special, gated bool) {
	if special {
		eval.Method = ProbeGETSpecial
	} else {
		eval.Method = ProbeGET
	}

	status, err := e.probe(ctx, http.MethodGet, link, getTimeout)
	if err != nil {
		eval.Status = 0
		eval.Working = false
		eval.Issue = networkIssue(err)
		return
	}

	eval.Status = status
	switch {
	case status >= 200 && status < 400:
		eval.Working = true
		eval.Issue = ""
	case gated && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		eval.Status = http.StatusOK
		eval.Working = true
		eval.Issue = privateFileIssue
	case special && status == http.StatusRequestedRangeNotSatisfiable:
		// The range was rejected but the resource clearly exists.
		eval.Status = http.StatusOK
		eval.Working = true
		eval.Issue = ""
	default:
		eval.Working = false
		eval.Issue = statusIssue(status)
	}
}

func (e *LinkEvaluator) probe(ctx context.Context, method, link string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-1023")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

// retriableNetError reports whether a transport failure is worth retrying
// with the fallback GET: timeouts and refused/reset/aborted connections.
func retriableNetError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// networkIssue maps a terminal transport failure to a human-readable message.
func networkIssue(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "Domain not found (DNS lookup failed)"
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var invalidCert x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &invalidCert) || errors.As(err, &hostnameErr) {
		return "SSL certificate error (expired or untrusted)"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "Connection timed out"
	}

	return fmt.Sprintf("Connection failed (%v)", rootCause(err))
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func statusIssue(code int) string {
	if msg, ok := statusIssues[code]; ok {
		return msg
	}
	return fmt.Sprintf("HTTP error (status %d)", code)
}

// isSpecialURL reports whether the link points at a document or cloud-storage
// host that needs the looser reachability handling.
func isSpecialURL(u *url.URL) bool {
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return true
	}

	host := strings.ToLower(u.Hostname())
	for _, special := range specialHosts {
		if host == special || strings.HasSuffix(host, "."+special) {
			return true
		}
	}

	// GitHub raw-file paths (github.com/owner/repo/raw/...).
	if host == "github.com" && strings.Contains(u.Path, "/raw/") {
		return true
	}
	return false
}

func isCloudHost(host string) bool {
	host = strings.ToLower(host)
	for _, cloud := range cloudHosts {
		if host == cloud || strings.HasSuffix(host, "."+cloud) {
			return true
		}
	}
	return false
}

// canonicalizeDriveURL rewrites a Drive "share" URL to its direct-view form
// so the probe hits the file rather than the share interstitial. Fails open
// to the original URL when the pattern does not match.
func canonicalizeDriveURL(u *url.URL) string {
	if !strings.EqualFold(u.Hostname(), "drive.google.com") {
		return u.String()
	}

	const marker = "/file/d/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return u.String()
	}

	id := u.Path[idx+len(marker):]
	if slash := strings.IndexByte(id, '/'); slash >= 0 {
		id = id[:slash]
	}
	if id == "" {
		return u.String()
	}
	return "https://drive.google.com/file/d/" + id + "/view"
}
