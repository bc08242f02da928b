package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/storm-parametric-settlement/internal/adapter/kafka"
	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

type submitOptions struct {
	eventID  uint64
	operator string
	keyPath  string
	api      string
	brokers  string
	topic    string
	digest   string
	timeout  time.Duration
}

func newSubmitCmd() *cobra.Command {
	var opts submitOptions
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Sign an event and submit the attestation",
		Long: "Sign an event and submit the attestation. The digest comes from --digest " +
			"or is fetched from --api. The attestation is posted to --api, or produced " +
			"to --topic on --brokers when brokers are given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return submit(ctx, cmd, opts)
		},
	}
	cmd.Flags().Uint64Var(&opts.eventID, "event-id", 0, "event id")
	cmd.Flags().StringVar(&opts.operator, "operator", "", "operator id")
	cmd.Flags().StringVar(&opts.keyPath, "key", "operator.key", "private key file")
	cmd.Flags().StringVar(&opts.api, "api", "", "settlement service base URL")
	cmd.Flags().StringVar(&opts.brokers, "brokers", "", "comma separated Kafka brokers")
	cmd.Flags().StringVar(&opts.topic, "topic", "operator-attestations", "Kafka attestation topic")
	cmd.Flags().StringVar(&opts.digest, "digest", "", "event digest (hex); fetched from --api when omitted")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall timeout")
	return cmd
}

func submit(ctx context.Context, cmd *cobra.Command, opts submitOptions) error {
	if opts.eventID == 0 || opts.operator == "" {
		return errors.New("--event-id and --operator are required")
	}
	if opts.api == "" && opts.brokers == "" {
		return errors.New("one of --api or --brokers is required")
	}
	priv, err := loadPrivateKey(opts.keyPath)
	if err != nil {
		return err
	}

	client := &http.Client{}
	api := strings.TrimRight(opts.api, "/")

	var digest [32]byte
	if opts.digest != "" {
		digest, err = parseDigest(opts.digest)
	} else if api != "" {
		digest, err = fetchDigest(ctx, client, api, opts.eventID)
	} else {
		err = errors.New("--digest is required without --api")
	}
	if err != nil {
		return err
	}

	sub := attestation.NewSubmission(opts.eventID, opts.operator, attestation.Sign(priv, digest))
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	if opts.brokers != "" {
		w := kafkaadapter.NewTopicWriter(strings.Split(opts.brokers, ","), opts.topic)
		defer w.Close()
		err := w.LoadBatch(ctx, []domain.OutputEvent{{
			Key:     []byte(opts.operator),
			Value:   body,
			Headers: map[string]string{"source": "operator-cli"},
		}})
		if err != nil {
			return fmt.Errorf("produce attestation: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "attestation for event %d queued on %s\n", opts.eventID, opts.topic)
		return err
	}

	reqBody, err := json.Marshal(map[string]string{"operator": sub.Operator, "signature": sub.Signature})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/events/%d/attestations", api, opts.eventID)
	resp, err := doJSON(ctx, client, http.MethodPost, url, reqBody)
	if err != nil {
		return err
	}
	var res domain.AttestationResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return fmt.Errorf("decode attestation result: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "event %d: %d attestations, validated=%t\n", res.EventID, res.Attestations, res.Validated)
	return err
}

func fetchDigest(ctx context.Context, client *http.Client, api string, eventID uint64) ([32]byte, error) {
	resp, err := doJSON(ctx, client, http.MethodGet, fmt.Sprintf("%s/v1/events/%d", api, eventID), nil)
	if err != nil {
		return [32]byte{}, err
	}
	var ev struct {
		Digest string `json:"digest"`
	}
	if err := json.Unmarshal(resp, &ev); err != nil {
		return [32]byte{}, fmt.Errorf("decode event: %w", err)
	}
	return parseDigest(ev.Digest)
}

func doJSON(ctx context.Context, client *http.Client, method, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.Unmarshal(buf.Bytes(), &e)
		return nil, fmt.Errorf("%s %s: %s %s: %s", method, url, resp.Status, e.Code, e.Error)
	}
	return buf.Bytes(), nil
}
