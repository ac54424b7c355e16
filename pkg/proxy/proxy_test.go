package proxy_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/ZakWinnick/StatsForAdventure/mocks"
	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/connector/rivian"
	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
	"github.com/ZakWinnick/StatsForAdventure/pkg/proxy"
)

var signingKey = []byte("0123456789abcdef0123456789abcdef")

func completeTokens() account.TokenSet {
	return account.TokenSet{
		AccessToken:      "at",
		RefreshToken:     "rt",
		CSRFToken:        "csrf",
		AppSessionToken:  "ast",
		UserSessionToken: "ust",
	}
}

func commandState(id, command, vehicleID string, state int) *rivian.CommandState {
	return &rivian.CommandState{
		ID:        id,
		Command:   command,
		VehicleID: vehicleID,
		State:     state,
		CreatedAt: time.Now(),
		Raw:       json.RawMessage(fmt.Sprintf(`{"id":%q,"state":%d}`, id, state)),
	}
}

var _ = Describe("Proxy", func() {
	var (
		ctrl    *gomock.Controller
		gateway *mocks.MockGateway
		p       *proxy.Proxy
		bearer  string
	)

	sendJSON := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rr := httptest.NewRecorder()
		p.ServeHTTP(rr, req)
		return rr
	}

	decode := func(rr *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	login := func() {
		gateway.EXPECT().CreateCSRFToken(gomock.Any()).
			Return(account.TokenSet{CSRFToken: "csrf", AppSessionToken: "ast"}, nil)
		gateway.EXPECT().Authenticate(gomock.Any(), gomock.Any(), "driver@example.com", "hunter2").
			Return(&rivian.AuthResult{Tokens: completeTokens()}, nil)
		gateway.EXPECT().CurrentUser(gomock.Any(), completeTokens()).
			Return([]account.Vehicle{{ID: "v1", Name: "Adventure", Model: "R1T"}}, nil)

		rr := sendJSON(http.MethodPost, "/api/auth/login",
			map[string]string{"email": "driver@example.com", "password": "hunter2"})
		Expect(rr.Code).To(Equal(http.StatusOK))
		body := decode(rr)
		Expect(body["token"]).NotTo(BeEmpty())
		bearer = body["token"].(string)
	}

	validCommand := func(name string) proxy.ExecuteRequest {
		return proxy.ExecuteRequest{
			Command:    name,
			VehicleID:  "v1",
			PhoneID:    "phone",
			IdentityID: "identity",
			VehicleKey: "vkey",
			PrivateKey: "pkey",
		}
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		gateway = mocks.NewMockGateway(ctrl)
		p = proxy.New(gateway, signingKey, time.Hour)
		bearer = ""
		login()
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	Context("authentication", func() {
		It("rejects requests without a bearer token", func() {
			bearer = ""
			rr := sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(decode(rr)["status"]).To(Equal("error"))
		})

		It("rejects tampered bearer tokens", func() {
			bearer += "x"
			rr := sendJSON(http.MethodGet, "/vehicles", nil)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("walks the OTP round trip", func() {
			bearer = ""
			gateway.EXPECT().CreateCSRFToken(gomock.Any()).
				Return(account.TokenSet{CSRFToken: "csrf", AppSessionToken: "ast"}, nil)
			gateway.EXPECT().Authenticate(gomock.Any(), gomock.Any(), "mfa@example.com", "hunter2").
				Return(&rivian.AuthResult{OTPNeeded: true, OTPToken: "otp-token",
					Tokens: account.TokenSet{CSRFToken: "csrf", AppSessionToken: "ast"}}, nil)

			rr := sendJSON(http.MethodPost, "/api/auth/login",
				map[string]string{"email": "mfa@example.com", "password": "hunter2"})
			Expect(rr.Code).To(Equal(http.StatusOK))
			body := decode(rr)
			Expect(body["otp_needed"]).To(BeTrue())
			Expect(body["otp_token"]).To(Equal("otp-token"))

			gateway.EXPECT().ValidateOTP(gomock.Any(), gomock.Any(), "mfa@example.com", "123456", "otp-token").
				Return(&rivian.AuthResult{Tokens: completeTokens()}, nil)
			gateway.EXPECT().CurrentUser(gomock.Any(), completeTokens()).
				Return([]account.Vehicle{{ID: "v1"}}, nil)

			rr = sendJSON(http.MethodPost, "/api/auth/otp", map[string]string{
				"email": "mfa@example.com", "otp_code": "123456", "otp_token": "otp-token",
				"csrf_token": "csrf", "app_session_token": "ast",
			})
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decode(rr)["token"]).NotTo(BeEmpty())
		})

		It("invalidates the session on logout", func() {
			rr := sendJSON(http.MethodPost, "/api/auth/logout", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			rr = sendJSON(http.MethodGet, "/vehicles", nil)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Context("command dispatch", func() {
		It("accepts a valid command and caches it as PENDING", func() {
			gateway.EXPECT().SendCommand(gomock.Any(), completeTokens(), gomock.Any()).
				DoAndReturn(func(_ context.Context, _ account.TokenSet, req rivian.CommandRequest) (string, error) {
					Expect(req.Command).To(Equal("WAKE_VEHICLE"))
					Expect(req.PhoneID).To(Equal("phone"))
					return "cmd-1", nil
				})

			rr := sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))
			Expect(rr.Code).To(Equal(http.StatusAccepted))
			body := decode(rr)
			Expect(body["status"]).To(Equal("success"))
			Expect(body["command_id"]).To(Equal("cmd-1"))

			// PENDING is non-terminal, so the status query reconciles against upstream.
			gateway.EXPECT().CommandState(gomock.Any(), completeTokens(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 0), nil)
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			body = decode(rr)
			Expect(body["command_status"]).To(Equal("PENDING"))
			Expect(body["command"]).To(Equal("WAKE_VEHICLE"))
		})

		It("rejects a command outside the vocabulary before any network call", func() {
			rr := sendJSON(http.MethodPost, "/commands", validCommand("SELF_DESTRUCT"))
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rr)["message"]).To(ContainSubstring("invalid command"))
		})

		It("rejects incomplete signing credentials", func() {
			request := validCommand("WAKE_VEHICLE")
			request.VehicleKey = ""
			rr := sendJSON(http.MethodPost, "/commands", request)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rr)["message"]).To(ContainSubstring("vehicle_key"))
		})

		It("rejects out-of-range command parameters", func() {
			request := validCommand("CHARGING_LIMITS")
			request.Params = proxy.RequestParameters{"SOC_limit": 45.0}
			rr := sendJSON(http.MethodPost, "/commands", request)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown vehicle", func() {
			request := validCommand("WAKE_VEHICLE")
			request.VehicleID = "v9"
			rr := sendJSON(http.MethodPost, "/commands", request)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})

		It("does not cache a command the gateway rejected", func() {
			gateway.EXPECT().SendCommand(gomock.Any(), gomock.Any(), gomock.Any()).
				Return("", protocol.NewUpstreamError("vehicle is offline", false, false))

			rr := sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))
			Expect(rr.Code).To(Equal(http.StatusBadGateway))
			Expect(decode(rr)["message"]).To(Equal("vehicle is offline"))

			// No partial state: the ID remains unknown everywhere.
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").Return(nil, nil)
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("status reconciliation", func() {
		dispatch := func(id string) {
			gateway.EXPECT().SendCommand(gomock.Any(), gomock.Any(), gomock.Any()).Return(id, nil)
			rr := sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))
			Expect(rr.Code).To(Equal(http.StatusAccepted))
		}

		It("freezes terminal records and stops polling upstream", func() {
			dispatch("cmd-1")

			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 3), nil).Times(1)

			rr := sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("COMPLETED"))

			// Served from cache; the single Times(1) expectation above would fail on a second
			// upstream query.
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("COMPLETED"))
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("COMPLETED"))
		})

		It("returns identical views for an unchanged upstream state", func() {
			dispatch("cmd-1")
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 1), nil).Times(2)

			first := decode(sendJSON(http.MethodGet, "/commands/cmd-1", nil))
			second := decode(sendJSON(http.MethodGet, "/commands/cmd-1", nil))
			Expect(second["command_status"]).To(Equal(first["command_status"]))
			Expect(second["result"]).To(Equal(first["result"]))
		})

		It("keeps polling a command stuck in UNKNOWN without moving backwards", func() {
			dispatch("cmd-1")
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 4), nil)

			rr := sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("UNKNOWN"))

			// A later PENDING report is a stale view; the lifecycle refuses the move.
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 0), nil)
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("UNKNOWN"))

			// Until a definitive state arrives.
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 2), nil)
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("FAILED"))
		})

		It("preserves the cached record when reconciliation fails", func() {
			dispatch("cmd-1")
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(nil, protocol.NewUpstreamError("gateway maintenance", false, true))

			rr := sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(rr.Code).To(Equal(http.StatusBadGateway))

			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 3), nil)
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decode(rr)["command_status"]).To(Equal("COMPLETED"))
		})

		It("reports timeouts as gateway timeouts and leaves the record intact", func() {
			dispatch("cmd-1")
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(nil, protocol.ErrTimeout)

			rr := sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(rr.Code).To(Equal(http.StatusGatewayTimeout))

			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-1").
				Return(commandState("cmd-1", "WAKE_VEHICLE", "v1", 0), nil)
			rr = sendJSON(http.MethodGet, "/commands/cmd-1", nil)
			Expect(decode(rr)["command_status"]).To(Equal("PENDING"))
		})

		It("synthesizes a record for a command the cache never saw", func() {
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-ext").
				Return(&rivian.CommandState{ID: "cmd-ext", VehicleID: "v1", State: 1,
					Raw: json.RawMessage(`{"state":1}`)}, nil)

			rr := sendJSON(http.MethodGet, "/commands/cmd-ext", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			body := decode(rr)
			Expect(body["command_status"]).To(Equal("EXECUTING"))
			Expect(body["command"]).To(Equal("unknown"))
		})

		It("returns not found when neither cache nor upstream know the ID", func() {
			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-404").Return(nil, nil)
			rr := sendJSON(http.MethodGet, "/commands/cmd-404", nil)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("command history", func() {
		It("lists a vehicle's commands newest first", func() {
			for _, id := range []string{"cmd-a", "cmd-b", "cmd-c"} {
				gateway.EXPECT().SendCommand(gomock.Any(), gomock.Any(), gomock.Any()).Return(id, nil)
				rr := sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))
				Expect(rr.Code).To(Equal(http.StatusAccepted))
				time.Sleep(2 * time.Millisecond)
			}

			rr := sendJSON(http.MethodGet, "/vehicles/v1/commands", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			var body struct {
				Commands []struct {
					CommandID string `json:"command_id"`
				} `json:"commands"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Commands).To(HaveLen(3))
			Expect(body.Commands[0].CommandID).To(Equal("cmd-c"))
			Expect(body.Commands[1].CommandID).To(Equal("cmd-b"))
			Expect(body.Commands[2].CommandID).To(Equal("cmd-a"))
		})

		It("rejects history for a vehicle outside the account", func() {
			rr := sendJSON(http.MethodGet, "/vehicles/v9/commands", nil)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("eviction", func() {
		It("removes terminal records and preserves fresh non-terminal ones", func() {
			gateway.EXPECT().SendCommand(gomock.Any(), gomock.Any(), gomock.Any()).Return("cmd-done", nil)
			sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))
			gateway.EXPECT().SendCommand(gomock.Any(), gomock.Any(), gomock.Any()).Return("cmd-live", nil)
			sendJSON(http.MethodPost, "/commands", validCommand("WAKE_VEHICLE"))

			gateway.EXPECT().CommandState(gomock.Any(), gomock.Any(), "cmd-done").
				Return(commandState("cmd-done", "WAKE_VEHICLE", "v1", 3), nil)
			sendJSON(http.MethodGet, "/commands/cmd-done", nil)

			Expect(p.EvictCommands()).To(Equal(1))

			rr := sendJSON(http.MethodGet, "/vehicles/v1/commands", nil)
			var body struct {
				Commands []struct {
					CommandID string `json:"command_id"`
				} `json:"commands"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Commands).To(HaveLen(1))
			Expect(body.Commands[0].CommandID).To(Equal("cmd-live"))
		})
	})

	Context("telemetry", func() {
		It("lists the account's vehicles", func() {
			rr := sendJSON(http.MethodGet, "/vehicles", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("Adventure"))
		})

		It("proxies vehicle state reads", func() {
			gateway.EXPECT().VehicleState(gomock.Any(), completeTokens(), "v1").
				Return(json.RawMessage(`{"batteryLevel":{"value":80}}`), nil)
			rr := sendJSON(http.MethodGet, "/vehicles/v1/state", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("batteryLevel"))
		})

		It("rejects state reads for unknown vehicles", func() {
			rr := sendJSON(http.MethodGet, "/vehicles/v9/state", nil)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("discovery", func() {
		It("lists the command vocabulary", func() {
			rr := sendJSON(http.MethodGet, "/commands/available", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("WAKE_VEHICLE"))
			Expect(rr.Body.String()).To(ContainSubstring("SOC_limit"))
		})

		It("only serves the vocabulary over GET", func() {
			rr := sendJSON(http.MethodPost, "/commands/available",
				map[string]string{"command": "WAKE_VEHICLE"})
			Expect(rr.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(decode(rr)["status"]).To(Equal("error"))
		})
	})

	It("reports health without authentication", func() {
		bearer = ""
		rr := sendJSON(http.MethodGet, "/health", nil)
		Expect(rr.Code).To(Equal(http.StatusOK))
	})

	It("returns 404 for unrecognized paths", func() {
		rr := sendJSON(http.MethodGet, "/unknown", nil)
		Expect(rr.Code).To(Equal(http.StatusNotFound))
	})
})
