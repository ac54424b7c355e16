package rivian

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/protocol"
)

// CommandRequest carries everything the gateway needs to sign and dispatch a remote command.
// The four signing credentials are enrolled through the vendor's mobile app and are opaque to
// the proxy.
type CommandRequest struct {
	Command    string
	VehicleID  string
	PhoneID    string
	IdentityID string
	VehicleKey string
	PrivateKey string
	Params     map[string]interface{}
}

// CommandState is the gateway's view of an issued command.
type CommandState struct {
	ID        string
	Command   string
	VehicleID string
	State     int
	CreatedAt time.Time
	Raw       json.RawMessage
}

const sendCommandDoc = `mutation SendVehicleCommand($attrs: VehicleCommandAttributes!) { sendVehicleCommand(attrs: $attrs) { __typename id command state } }`

// SendCommand asks the gateway to sign and dispatch a command, returning the command ID the
// gateway assigned. The gateway rejects the request when the vehicle is unreachable or the
// signature is invalid; those rejections surface as UpstreamErrors with the gateway's message.
func (c *Client) SendCommand(ctx context.Context, tokens account.TokenSet, req CommandRequest) (string, error) {
	params := req.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	data, err := c.roundTrip(ctx, gatewayPath, tokens, graphQLRequest{
		OperationName: "SendVehicleCommand",
		Query:         sendCommandDoc,
		Variables: map[string]interface{}{
			"attrs": map[string]interface{}{
				"command":    req.Command,
				"vehicleId":  req.VehicleID,
				"phoneId":    req.PhoneID,
				"identityId": req.IdentityID,
				"vehicleKey": req.VehicleKey,
				"privateKey": req.PrivateKey,
				"params":     params,
			},
		},
	})
	if err != nil {
		return "", err
	}
	var parsed struct {
		SendVehicleCommand struct {
			ID string `json:"id"`
		} `json:"sendVehicleCommand"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.SendVehicleCommand.ID == "" {
		return "", protocol.NewUpstreamError("gateway did not return a command id", true, false)
	}
	return parsed.SendVehicleCommand.ID, nil
}

const commandStateDoc = `query GetVehicleCommand($id: String!) { getVehicleCommand(id: $id) { __typename id command vehicleId state responseCode statusCode createdAt updatedAt } }`

// CommandState polls the gateway for the state of a previously issued command. A nil result
// with a nil error means the gateway has no record of the command ID.
func (c *Client) CommandState(ctx context.Context, tokens account.TokenSet, commandID string) (*CommandState, error) {
	data, err := c.roundTrip(ctx, gatewayPath, tokens, graphQLRequest{
		OperationName: "GetVehicleCommand",
		Query:         commandStateDoc,
		Variables:     map[string]interface{}{"id": commandID},
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		GetVehicleCommand json.RawMessage `json:"getVehicleCommand"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed command state", false, false)
	}
	if len(parsed.GetVehicleCommand) == 0 || string(parsed.GetVehicleCommand) == "null" {
		return nil, nil
	}
	var state struct {
		ID        string    `json:"id"`
		Command   string    `json:"command"`
		VehicleID string    `json:"vehicleId"`
		State     int       `json:"state"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(parsed.GetVehicleCommand, &state); err != nil {
		return nil, protocol.NewUpstreamError("gateway returned malformed command state", false, false)
	}
	return &CommandState{
		ID:        state.ID,
		Command:   state.Command,
		VehicleID: state.VehicleID,
		State:     state.State,
		CreatedAt: state.CreatedAt,
		Raw:       parsed.GetVehicleCommand,
	}, nil
}
