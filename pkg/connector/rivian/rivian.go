// Package rivian talks to the Rivian cloud service's GraphQL gateway.
//
// The wire format is vendor-owned and undocumented; this package is a narrow adapter exposing
// only the operations the proxy needs: authentication, the user's vehicle directory, telemetry
// reads, and command dispatch with status polling. Everything else the gateway offers is out of
// scope.
package rivian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
)

const (
	// DefaultBaseURL is the production GraphQL gateway.
	DefaultBaseURL = "https://rivian.com/api/gql"

	// DefaultTimeout bounds each gateway round trip.
	DefaultTimeout = 30 * time.Second

	gatewayPath = "/gateway/graphql"
	authPath    = "/auth/api/graphql"

	maxResponseLength = 10_000_000
)

// HttpError represents a non-200 response from the gateway.
type HttpError struct {
	Code    int
	Message string
}

func (e *HttpError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return e.Message
}

func (e *HttpError) MayHaveSucceeded() bool {
	if e.Code >= 400 && e.Code < 500 {
		return false
	}
	return e.Code != http.StatusServiceUnavailable
}

func (e *HttpError) Temporary() bool {
	return e.Code == http.StatusServiceUnavailable ||
		e.Code == http.StatusGatewayTimeout ||
		e.Code == http.StatusRequestTimeout
}

// Client issues GraphQL operations against the gateway. A single Client serves all users; the
// per-user session tokens are supplied with each call. Safe for concurrent use.
type Client struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	client http.Client
}

// NewClient returns a Client for the production gateway.
func NewClient(userAgent string) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   DefaultTimeout,
	}
}

type graphQLRequest struct {
	OperationName string                 `json:"operationName"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// roundTrip posts a GraphQL operation and returns the data payload. Session tokens may be empty
// for pre-authentication operations.
func (c *Client) roundTrip(ctx context.Context, path string, tokens account.TokenSet, op graphQLRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body, err := json.Marshal(&op)
	if err != nil {
		return nil, err
	}
	log.Debug("Sending %s to %s%s", op.OperationName, c.BaseURL, path)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &protocol.UpstreamError{Err: err, PossibleSuccess: false, PossibleTemporary: true}
	}
	request.Header.Set("User-Agent", c.UserAgent)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if tokens.CSRFToken != "" {
		request.Header.Set("Csrf-Token", tokens.CSRFToken)
	}
	if tokens.AppSessionToken != "" {
		request.Header.Set("A-Sess", tokens.AppSessionToken)
	}
	if tokens.UserSessionToken != "" {
		request.Header.Set("U-Sess", tokens.UserSessionToken)
	}

	result, err := c.client.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, protocol.ErrTimeout
		}
		return nil, &protocol.UpstreamError{Err: err, PossibleSuccess: true, PossibleTemporary: true}
	}
	defer result.Body.Close()

	limited := io.LimitedReader{R: result.Body, N: maxResponseLength + 1}
	payload, err := io.ReadAll(&limited)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, protocol.ErrTimeout
		}
		return nil, &protocol.UpstreamError{Err: err, PossibleSuccess: true, PossibleTemporary: false}
	}
	if len(payload) == maxResponseLength+1 {
		return nil, protocol.NewUpstreamError("response exceeds maximum length", true, true)
	}

	log.Debug("Gateway returned %d: %s", result.StatusCode, http.StatusText(result.StatusCode))
	if result.StatusCode != http.StatusOK {
		return nil, &protocol.UpstreamError{
			Err:               &HttpError{Code: result.StatusCode, Message: string(payload)},
			PossibleSuccess:   (&HttpError{Code: result.StatusCode}).MayHaveSucceeded(),
			PossibleTemporary: (&HttpError{Code: result.StatusCode}).Temporary(),
		}
	}

	var response graphQLResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed JSON", true, false)
	}
	if len(response.Errors) > 0 {
		// The gateway's message is surfaced verbatim.
		return nil, protocol.NewUpstreamError(response.Errors[0].Message, false, false)
	}
	return response.Data, nil
}

// AuthResult describes the outcome of an authentication attempt. When OTPNeeded is set the user
// must complete the one-time-password round trip before tokens are issued.
type AuthResult struct {
	OTPNeeded bool
	OTPToken  string
	Tokens    account.TokenSet
}

const csrfTokenDoc = `mutation CreateCSRFToken { createCsrfToken { __typename csrfToken appSessionToken } }`

// CreateCSRFToken bootstraps the CSRF and app session tokens required by every subsequent
// authentication operation.
func (c *Client) CreateCSRFToken(ctx context.Context) (account.TokenSet, error) {
	data, err := c.roundTrip(ctx, authPath, account.TokenSet{}, graphQLRequest{
		OperationName: "CreateCSRFToken",
		Query:         csrfTokenDoc,
	})
	if err != nil {
		return account.TokenSet{}, err
	}
	var parsed struct {
		CreateCSRFToken struct {
			CSRFToken       string `json:"csrfToken"`
			AppSessionToken string `json:"appSessionToken"`
		} `json:"createCsrfToken"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return account.TokenSet{}, protocol.NewUpstreamError("gateway returned malformed CSRF payload", false, false)
	}
	return account.TokenSet{
		CSRFToken:       parsed.CreateCSRFToken.CSRFToken,
		AppSessionToken: parsed.CreateCSRFToken.AppSessionToken,
	}, nil
}

const loginDoc = `mutation Login($email: String!, $password: String!) { login(email: $email, password: $password) { __typename ... on MobileLoginResponse { accessToken refreshToken userSessionToken } ... on MobileMFALoginResponse { otpToken } } }`

// Authenticate performs a password login. The supplied token set must carry the CSRF bootstrap
// tokens from CreateCSRFToken, which are preserved in the result.
func (c *Client) Authenticate(ctx context.Context, tokens account.TokenSet, email, password string) (*AuthResult, error) {
	data, err := c.roundTrip(ctx, authPath, tokens, graphQLRequest{
		OperationName: "Login",
		Query:         loginDoc,
		Variables:     map[string]interface{}{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Login struct {
			AccessToken      string `json:"accessToken"`
			RefreshToken     string `json:"refreshToken"`
			UserSessionToken string `json:"userSessionToken"`
			OTPToken         string `json:"otpToken"`
		} `json:"login"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed login payload", false, false)
	}
	if parsed.Login.OTPToken != "" {
		return &AuthResult{OTPNeeded: true, OTPToken: parsed.Login.OTPToken, Tokens: tokens}, nil
	}
	tokens.AccessToken = parsed.Login.AccessToken
	tokens.RefreshToken = parsed.Login.RefreshToken
	tokens.UserSessionToken = parsed.Login.UserSessionToken
	return &AuthResult{Tokens: tokens}, nil
}

const validateOTPDoc = `mutation LoginWithOTP($email: String!, $otpCode: String!, $otpToken: String!) { loginWithOTP(email: $email, otpCode: $otpCode, otpToken: $otpToken) { __typename accessToken refreshToken userSessionToken } }`

// ValidateOTP completes a login that required multi-factor authentication.
func (c *Client) ValidateOTP(ctx context.Context, tokens account.TokenSet, email, otpCode, otpToken string) (*AuthResult, error) {
	data, err := c.roundTrip(ctx, authPath, tokens, graphQLRequest{
		OperationName: "LoginWithOTP",
		Query:         validateOTPDoc,
		Variables:     map[string]interface{}{"email": email, "otpCode": otpCode, "otpToken": otpToken},
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		LoginWithOTP struct {
			AccessToken      string `json:"accessToken"`
			RefreshToken     string `json:"refreshToken"`
			UserSessionToken string `json:"userSessionToken"`
		} `json:"loginWithOTP"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed OTP payload", false, false)
	}
	tokens.AccessToken = parsed.LoginWithOTP.AccessToken
	tokens.RefreshToken = parsed.LoginWithOTP.RefreshToken
	tokens.UserSessionToken = parsed.LoginWithOTP.UserSessionToken
	return &AuthResult{Tokens: tokens}, nil
}

const currentUserDoc = `query CurrentUser { currentUser { __typename id email vehicles { id name vin vehicle { model } } } }`

// CurrentUser fetches the authenticated user's vehicle directory.
func (c *Client) CurrentUser(ctx context.Context, tokens account.TokenSet) ([]account.Vehicle, error) {
	data, err := c.roundTrip(ctx, gatewayPath, tokens, graphQLRequest{
		OperationName: "CurrentUser",
		Query:         currentUserDoc,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		CurrentUser struct {
			Vehicles []struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				VIN     string `json:"vin"`
				Vehicle struct {
					Model string `json:"model"`
				} `json:"vehicle"`
			} `json:"vehicles"`
		} `json:"currentUser"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed user payload", false, false)
	}
	vehicles := make([]account.Vehicle, 0, len(parsed.CurrentUser.Vehicles))
	for _, v := range parsed.CurrentUser.Vehicles {
		vehicles = append(vehicles, account.Vehicle{ID: v.ID, Name: v.Name, VIN: v.VIN, Model: v.Vehicle.Model})
	}
	return vehicles, nil
}

const vehicleStateDoc = `query GetVehicleState($vehicleID: String!) { vehicleState(id: $vehicleID) { __typename gnssLocation { latitude longitude timeStamp } batteryLevel { timeStamp value } distanceToEmpty { timeStamp value } chargerState { timeStamp value } powerState { timeStamp value } cabinClimateInteriorTemperature { timeStamp value } } }`

// VehicleState reads current telemetry for a vehicle. The payload is returned opaquely; the
// proxy does not interpret it.
func (c *Client) VehicleState(ctx context.Context, tokens account.TokenSet, vehicleID string) (json.RawMessage, error) {
	data, err := c.roundTrip(ctx, gatewayPath, tokens, graphQLRequest{
		OperationName: "GetVehicleState",
		Query:         vehicleStateDoc,
		Variables:     map[string]interface{}{"vehicleID": vehicleID},
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		VehicleState json.RawMessage `json:"vehicleState"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.VehicleState == nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed vehicle state", false, false)
	}
	return parsed.VehicleState, nil
}

const chargingSessionDoc = `query GetLiveSessionData($vehicleID: ID!) { getLiveSessionData(vehicleId: $vehicleID) { __typename chargerType currentPrice kilometersChargedPerHour power rangeAddedThisSession timeElapsed totalChargedEnergy vehicleChargerState { value } } }`

// LiveChargingSession reads live charging data, returning nil when no session is active.
func (c *Client) LiveChargingSession(ctx context.Context, tokens account.TokenSet, vehicleID string) (json.RawMessage, error) {
	data, err := c.roundTrip(ctx, gatewayPath, tokens, graphQLRequest{
		OperationName: "GetLiveSessionData",
		Query:         chargingSessionDoc,
		Variables:     map[string]interface{}{"vehicleID": vehicleID},
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		GetLiveSessionData json.RawMessage `json:"getLiveSessionData"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed charging payload", false, false)
	}
	return parsed.GetLiveSessionData, nil
}
