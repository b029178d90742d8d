package reports

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/sirupsen/logrus"
)

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"tenant_id":      tenantId,
		"correlation_id": cid,
		"extra":          extra,
	}).Warn("slow_report")
}

func previewCacheKey(tenantId string, q ReportQuery) string {
	raw, _ := json.Marshal(q)
	sum := sha1.Sum(raw)
	return "report_preview:" + tenantId + ":" + hex.EncodeToString(sum[:])
}

// PreviewReportData is GetFinancialReportData behind the optional redis cache
// (ENABLE_REPORT_CACHE). Cached rows come back JSON-decoded, so amounts are
// strings; use it only for JSON responses.
func PreviewReportData(ctx context.Context, tenantId string, q ReportQuery) ([]Row, error) {
	if !config.ReportCacheEnabled() {
		return GetFinancialReportData(ctx, tenantId, q)
	}
	key := previewCacheKey(tenantId, q)
	var cached []Row
	if ok, err := config.GetRedisObject(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := GetFinancialReportData(ctx, tenantId, q)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, key, rows, reportCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "reports", "PreviewReportData", "cache report preview", key, err)
	}
	return rows, nil
}

