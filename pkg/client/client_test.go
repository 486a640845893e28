package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/backend-scheduler/pkg/client"
)

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newClient := func(url string) *client.Client {
		return client.New(url, "test-key",
			client.WithBaseDelay(time.Millisecond),
			client.WithMaxRetries(3))
	}

	Context("successful requests", func() {
		It("decodes the response envelope", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/backends"))
				json.NewEncoder(w).Encode(map[string]any{
					"code": 0,
					"msg":  "ok",
					"data": []string{"b1", "b2"},
				})
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL).Backends(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Code).To(Equal(0))
			Expect(resp.Msg).To(Equal("ok"))

			var ids []string
			Expect(json.Unmarshal(resp.Data, &ids)).To(Succeed())
			Expect(ids).To(Equal([]string{"b1", "b2"}))
		})

		It("sends the bearer token on every request", func() {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "ok"})
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Policies(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(gotAuth).To(Equal("Bearer test-key"))
		})

		It("posts registration payloads as JSON", func() {
			var gotBody map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/v1/app-1/backends"))
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
				json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "ok"})
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).RegisterBackend(ctx, "app-1", "worker-a", 4)
			Expect(err).ToNot(HaveOccurred())
			Expect(gotBody).To(HaveKeyWithValue("instance_id", "worker-a"))
			Expect(gotBody).To(HaveKeyWithValue("weight", float64(4)))
		})

		It("appends the policy override as a query parameter", func() {
			var gotQuery string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "ok"})
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).SelectBackends(ctx, "app-1", "weighted")
			Expect(err).ToNot(HaveOccurred())
			Expect(gotQuery).To(Equal("policy=weighted"))
		})
	})

	Context("authentication failures", func() {
		It("returns an AuthError without retrying", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Backends(ctx)

			var authErr *client.AuthError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(calls.Load()).To(Equal(int32(1)))
		})
	})

	Context("transient failures", func() {
		It("retries server errors and then gives up", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Backends(ctx)

			var exhausted *client.RetryExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeTrue())
			Expect(exhausted.Attempts).To(Equal(3))
			Expect(calls.Load()).To(Equal(int32(3)))
		})

		It("still makes one attempt when the retry budget is zero", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			c := client.New(srv.URL, "test-key",
				client.WithBaseDelay(time.Millisecond),
				client.WithMaxRetries(0))

			_, err := c.Backends(ctx)

			var exhausted *client.RetryExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeTrue())
			Expect(exhausted.Attempts).To(Equal(1))
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("recovers when a later attempt succeeds", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "ok"})
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL).Backends(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Code).To(Equal(0))
			Expect(calls.Load()).To(Equal(int32(3)))
		})
	})

	Context("client errors", func() {
		It("returns an APIError for 4xx responses", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).RemoveBackend(ctx, "app-1", "missing")

			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Context("circuit breaker", func() {
		It("rejects requests once the breaker is open", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			breaker := client.NewCircuitBreaker(2, time.Minute)
			c := client.New(srv.URL, "test-key",
				client.WithBaseDelay(time.Millisecond),
				client.WithMaxRetries(2),
				client.WithCircuitBreaker(breaker))

			_, err := c.Backends(ctx)
			Expect(err).To(HaveOccurred())
			Expect(breaker.State()).To(Equal(client.BreakerOpen))

			_, err = c.Backends(ctx)
			Expect(errors.Is(err, client.ErrCircuitOpen)).To(BeTrue())
		})
	})
})
