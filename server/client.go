package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a ProfileServer.
type Client struct {
	run             *connect.Client[RunRequest, RunResponse]
	stats           *connect.Client[StatsRequest, StatsResponse]
	capture         *connect.Client[CaptureRequest, CaptureResponse]
	sweep           *connect.Client[SweepRequest, SweepResponse]
	listSnapshots   *connect.Client[ListSnapshotsRequest, ListSnapshotsResponse]
	getSnapshot     *connect.Client[GetSnapshotRequest, GetSnapshotResponse]
	generateProfile *connect.Client[GenerateProfileRequest, GenerateProfileResponse]
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:7411".
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	codec := connect.WithCodec(cborCodec{})
	return &Client{
		run:             connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, codec),
		stats:           connect.NewClient[StatsRequest, StatsResponse](httpClient, baseURL+StatsProcedure, codec),
		capture:         connect.NewClient[CaptureRequest, CaptureResponse](httpClient, baseURL+CaptureProcedure, codec),
		sweep:           connect.NewClient[SweepRequest, SweepResponse](httpClient, baseURL+SweepProcedure, codec),
		listSnapshots:   connect.NewClient[ListSnapshotsRequest, ListSnapshotsResponse](httpClient, baseURL+ListSnapshotsProcedure, codec),
		getSnapshot:     connect.NewClient[GetSnapshotRequest, GetSnapshotResponse](httpClient, baseURL+GetSnapshotProcedure, codec),
		generateProfile: connect.NewClient[GenerateProfileRequest, GenerateProfileResponse](httpClient, baseURL+GenerateProfileProcedure, codec),
	}
}

func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	resp, err := c.stats.CallUnary(ctx, connect.NewRequest(&StatsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Capture(ctx context.Context, req *CaptureRequest) (*CaptureResponse, error) {
	resp, err := c.capture.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Sweep(ctx context.Context, req *SweepRequest) (*SweepResponse, error) {
	resp, err := c.sweep.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ListSnapshots(ctx context.Context) (*ListSnapshotsResponse, error) {
	resp, err := c.listSnapshots.CallUnary(ctx, connect.NewRequest(&ListSnapshotsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetSnapshot(ctx context.Context, id string) (*GetSnapshotResponse, error) {
	resp, err := c.getSnapshot.CallUnary(ctx, connect.NewRequest(&GetSnapshotRequest{ID: id}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GenerateProfile(ctx context.Context, req *GenerateProfileRequest) (*GenerateProfileResponse, error) {
	resp, err := c.generateProfile.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
