package apihttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tickline/internal/market"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type handlers struct {
	cfg ServerConfig
}

// candleRow is the wire shape of one bar. Daily and coarser bars carry a
// calendar date; intraday bars carry the raw bucketed epoch timestamp.
type candleRow struct {
	Timestamp int64           `json:"timestamp,omitempty"`
	Date      string          `json:"date,omitempty"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

func (h *handlers) candles(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	interval, err := market.ParseInterval(c.DefaultQuery("interval", "1d"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	bars, err := h.cfg.Candles.GetCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]candleRow, 0, len(bars))
	for _, b := range bars {
		row := candleRow{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		if interval.Intraday() {
			row.Timestamp = b.Timestamp
		} else {
			row.Date = b.Time(h.cfg.Location).Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval.String(), "candles": rows})
}

func (h *handlers) quotes(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("symbols"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	symbols := strings.Split(raw, ",")
	quotes, err := h.cfg.Quotes.GetQuotes(c.Request.Context(), symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

func (h *handlers) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.cfg.Breaker != nil {
		tripped, rearmAt, reason := h.cfg.Breaker.State()
		breaker := gin.H{"tripped": tripped}
		if tripped {
			breaker["rearm_at"] = rearmAt.Format(time.RFC3339)
			breaker["reason"] = reason
			resp["status"] = "degraded"
		}
		resp["breaker"] = breaker
	}
	c.JSON(http.StatusOK, resp)
}
