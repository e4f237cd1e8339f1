package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/tinstructor/interference/experiment"
)

const (
	contentType             = "application/json"
	collectEndpoint         = "interference/v1/collect"
	defaultSendRecordAmount = 100
)

// CollectResponse is what the collect endpoint answers with.
type CollectResponse struct {
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
}

// Server sends records in batches to an interference collect server.
type Server struct {
	Server            string
	SendRecordsAmount int
	Client            *http.Client
}

func (s *Server) Write(ctx context.Context, records <-chan experiment.Record) error {
	sendRecordsAmount := defaultSendRecordAmount
	if s.SendRecordsAmount > 0 {
		sendRecordsAmount = s.SendRecordsAmount
	}

	var failed int
	var recordsToSend []experiment.Record
	for rec := range records {
		recordsToSend = append(recordsToSend, rec)
		if len(recordsToSend) < sendRecordsAmount {
			continue // we haven't collected enough records to send yet
		}
		if err := s.send(ctx, recordsToSend); err != nil {
			glog.Warningf("error submitting records: %s\n", err)
			failed += len(recordsToSend)
		}
		recordsToSend = nil
	}
	if len(recordsToSend) > 0 {
		if err := s.send(ctx, recordsToSend); err != nil {
			glog.Warningf("error submitting records: %s\n", err)
			failed += len(recordsToSend)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d records could not be submitted to %s", failed, s.Server)
	}
	return nil
}

func (s *Server) send(ctx context.Context, records []experiment.Record) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("error marshalling records to JSON: %s", err)
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(s.Server, "/"), collectEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error POSTing records: %s", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading POST body: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	collectResponseBody := CollectResponse{}
	if err := json.Unmarshal(respBody, &collectResponseBody); err != nil {
		return fmt.Errorf("unable to decode server response: %s", err)
	}
	glog.Infof("submitted %d records to server %s", collectResponseBody.RecordCount, s.Server)
	return nil
}
