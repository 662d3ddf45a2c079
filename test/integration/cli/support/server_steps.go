package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/roikit/internal/editor"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/server"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper runs the real handlers on an httptest listener.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

func (testCtx *TestContext) theServerIsRunning() error {
	mc := matcher.DefaultConfig()
	mc.Backend = matcher.BackendGo
	s, err := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  30,
		Matcher:     mc,
		Editor:      editor.DefaultConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{Server: httptest.NewServer(mux), TestServer: s}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Server.Close()
		testCtx.HTTPTestServer = nil
	}
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := testCtx.HTTPTestServer.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	req, err := http.NewRequest(http.MethodGet, testCtx.HTTPTestServer.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iPOSTTheImageWith uploads name as "image" plus one form field per table
// row. A value naming an existing .png in the temp dir is uploaded as a file.
func (testCtx *TestContext) iPOSTTheImageWith(name, path string, table *godog.Table) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	addFile := func(field, file string) error {
		data, err := os.ReadFile(testCtx.Path(file))
		if err != nil {
			return err
		}
		fw, err := mw.CreateFormFile(field, filepath.Base(file))
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}
	if err := addFile("image", name); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("form table rows need a field and a value")
		}
		field, value := row.Cells[0].Value, row.Cells[1].Value
		if strings.HasSuffix(value, ".png") {
			if err := addFile(field, value); err != nil {
				return err
			}
			continue
		}
		if err := mw.WriteField(field, value); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.HTTPTestServer.Server.URL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, status, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseField(field string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return lookupField(data, field)
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	v, err := testCtx.responseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field '%s' is %s, want %s", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBeAbout(field string, expected float64) error {
	v, err := testCtx.responseField(field)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok || math.Abs(n-expected) > 0.5 {
		return fmt.Errorf("field '%s' is %v, want %.3f +/- 0.5", field, v, expected)
	}
	return nil
}

// RegisterServerSteps registers HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the roikit server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the image "([^"]*)" to "([^"]*)" with:$`, testCtx.iPOSTTheImageWith)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should be about (-?[0-9.]+)$`, testCtx.theResponseFieldShouldBeAbout)
}
