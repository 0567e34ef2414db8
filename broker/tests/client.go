package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"submithub/broker/ledger"
	"submithub/broker/schema"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		switch res.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		case http.StatusNotFound:
			return ErrNotFound
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Put(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "PUT", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) login(code string) error {
	var res map[string]string
	err := c.Post("/user/login").Json(map[string]string{"code": code}).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

type userInfo struct {
	UserId                 string   `json:"user_id"`
	Orcid                  string   `json:"orcid"`
	Name                   string   `json:"name"`
	Email                  string   `json:"email"`
	IsAdmin                bool     `json:"is_admin"`
	AuthorizedRepositories []string `json:"authorized_repositories"`
}

func (c *client) userInfo() (userInfo, error) {
	var res userInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

type tokenInfo struct {
	RepositoryType string     `json:"repository_type"`
	AccessToken    string     `json:"access_token"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Expired        bool       `json:"expired"`
}

func (c *client) authorizeRepository(repositoryType, code string) (tokenInfo, error) {
	var res tokenInfo
	err := c.Post(fmt.Sprintf("/repository/%v/authorize", repositoryType)).Json(map[string]string{"code": code}).Do(&res)
	return res, err
}

func (c *client) repositoryToken(repositoryType string) (tokenInfo, error) {
	var res tokenInfo
	err := c.Get(fmt.Sprintf("/repository/%v/token", repositoryType)).Do(&res)
	return res, err
}

func (c *client) revokeRepository(repositoryType string) error {
	return c.Delete(fmt.Sprintf("/repository/%v/token", repositoryType)).Do(nil)
}

type submissionResult struct {
	Submission schema.Submission      `json:"submission"`
	Record     map[string]interface{} `json:"record"`
}

func (c *client) createMetadata(repositoryType string, metadata map[string]interface{}) (submissionResult, error) {
	var res submissionResult
	err := c.Post(fmt.Sprintf("/metadata/%v", repositoryType)).Json(metadata).Do(&res)
	return res, err
}

func (c *client) getMetadata(repositoryType, identifier string) (map[string]interface{}, error) {
	var res map[string]interface{}
	err := c.Get(fmt.Sprintf("/metadata/%v/%v", repositoryType, identifier)).Do(&res)
	return res, err
}

func (c *client) updateMetadata(repositoryType, identifier string, metadata map[string]interface{}) (submissionResult, error) {
	var res submissionResult
	err := c.Put(fmt.Sprintf("/metadata/%v/%v", repositoryType, identifier)).Json(metadata).Do(&res)
	return res, err
}

func (c *client) deleteMetadata(repositoryType, identifier string) error {
	return c.Delete(fmt.Sprintf("/metadata/%v/%v", repositoryType, identifier)).Do(nil)
}

func (c *client) listSubmissions() ([]schema.Submission, error) {
	var res []schema.Submission
	err := c.Get("/submission/list").Do(&res)
	return res, err
}

func (c *client) submissionReport() (ledger.Report, error) {
	var res ledger.Report
	err := c.Get("/submission/report").Do(&res)
	return res, err
}

func (c *client) transferSubmissions(fromUserId, toUserId string) error {
	body := map[string]string{"from_user_id": fromUserId, "to_user_id": toUserId}
	return c.Post("/submission/transfer").Json(body).Do(nil)
}
