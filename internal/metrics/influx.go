package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gsanchietti/fpush/internal/logging"
)

// StartInfluxPusher starts a background loop pushing gateway counters to
// InfluxDB using the v2 line-protocol write API.
func StartInfluxPusher(ctx context.Context, url, token, org, bucket string, interval time.Duration) {
	if url == "" || bucket == "" {
		return
	}
	logging.Get().Info().Str("url", url).Dur("interval", interval).Msg("starting influxdb pusher")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	writeURL := fmt.Sprintf("%s/api/v2/write?org=%s&bucket=%s&precision=s", strings.TrimRight(url, "/"), org, bucket)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pushToInflux(client, writeURL, token)
		}
	}
}

func pushToInflux(client *http.Client, url, token string) {
	s := GetSnapshot()

	// Influx line protocol: measurement field=value,... timestamp
	line := fmt.Sprintf(
		"fpush connect_attempts=%di,connect_failures=%di,disconnects=%di,stanzas_received=%di,stanzas_malformed=%di,pushes_delivered=%di,pushes_failed=%di,last_connected=%di %d",
		s.ConnectAttempts, s.ConnectFailures, s.Disconnects,
		s.StanzasReceived, s.StanzasMalformed,
		s.PushesDelivered, s.PushesFailed,
		s.LastConnected, time.Now().Unix(),
	)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(line)))
	if err != nil {
		logging.Get().Warn().Err(err).Msg("failed to build influx request")
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("failed to push metrics to influx")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logging.Get().Warn().Int("status", resp.StatusCode).Msg("influx write rejected")
	}
}
