package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/backend-scheduler/pkg/client"
)

var _ = Describe("EventClient", func() {
	var upgrader websocket.Upgrader

	wsURL := func(srv *httptest.Server) string {
		return "ws" + strings.TrimPrefix(srv.URL, "http")
	}

	It("authenticates right after connecting", func() {
		authMsgs := make(chan map[string]string, 1)
		headers := make(chan string, 1)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Get("Authorization")
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			var msg map[string]string
			if err := conn.ReadJSON(&msg); err == nil {
				authMsgs <- msg
			}
		}))
		defer srv.Close()

		ec := client.NewEventClient(wsURL(srv), "stream-token",
			client.WithReconnectDelay(10*time.Millisecond))
		ec.Start()
		defer ec.Close()

		Eventually(headers).Should(Receive(Equal("Bearer stream-token")))

		var auth map[string]string
		Eventually(authMsgs).Should(Receive(&auth))
		Expect(auth).To(HaveKeyWithValue("type", "auth"))
		Expect(auth).To(HaveKeyWithValue("token", "stream-token"))
	})

	It("dispatches inbound events to the registered handler", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			var auth map[string]string
			if err := conn.ReadJSON(&auth); err != nil {
				return
			}

			conn.WriteJSON(map[string]any{
				"type": "backend_down",
				"data": map[string]string{"backend_id": "b-1"},
			})

			// Keep the connection up until the client goes away.
			conn.ReadMessage()
		}))
		defer srv.Close()

		received := make(chan client.Event, 1)
		ec := client.NewEventClient(wsURL(srv), "stream-token",
			client.WithReconnectDelay(10*time.Millisecond))
		ec.OnEvent("backend_down", func(e client.Event) {
			received <- e
		})
		ec.Start()
		defer ec.Close()

		var event client.Event
		Eventually(received).Should(Receive(&event))
		Expect(event.Type).To(Equal("backend_down"))

		var data map[string]string
		Expect(json.Unmarshal(event.Data, &data)).To(Succeed())
		Expect(data).To(HaveKeyWithValue("backend_id", "b-1"))
	})

	It("reconnects after the server drops the connection", func() {
		connects := make(chan struct{}, 4)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			connects <- struct{}{}
			conn.Close()
		}))
		defer srv.Close()

		ec := client.NewEventClient(wsURL(srv), "stream-token",
			client.WithReconnectDelay(5*time.Millisecond))
		ec.Start()
		defer ec.Close()

		Eventually(connects).Should(Receive())
		Eventually(connects).Should(Receive())
	})

	It("rejects Send before any connection exists", func() {
		ec := client.NewEventClient("ws://127.0.0.1:0", "stream-token")
		err := ec.Send(map[string]string{"type": "ping"})
		Expect(err).To(MatchError(client.ErrNotConnected))
	})

	It("stops reconnecting once closed", func() {
		connects := make(chan struct{}, 8)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			connects <- struct{}{}
			conn.Close()
		}))
		defer srv.Close()

		ec := client.NewEventClient(wsURL(srv), "stream-token",
			client.WithReconnectDelay(5*time.Millisecond))
		ec.Start()

		Eventually(connects).Should(Receive())
		Expect(ec.Close()).To(Succeed())

		// Drain whatever was in flight, then expect silence.
		time.Sleep(30 * time.Millisecond)
		for len(connects) > 0 {
			<-connects
		}
		Consistently(connects, 50*time.Millisecond).ShouldNot(Receive())
	})
})
