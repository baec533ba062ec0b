package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/settlement"
	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/messaging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Terminals connect from the local network and from the back office.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// watchBill streams recomputed summaries to a terminal for as long as it
// keeps the settlement view open. Each connection runs its own coordinator:
// the terminal gets a full reload on every change event, never a delta.
func (g *Gateway) watchBill(c *gin.Context) {
	claims, err := g.tokens.Verify(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	restaurantID, err := uuid.Parse(claims.RestaurantID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid restaurant scope"})
		return
	}
	terms, err := queryTerms(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref := settlement.BillRef{RestaurantID: restaurantID, BillID: c.Param("bill")}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	coord, err := settlement.Watch(c.Request.Context(), g.svc, g.feed, ref, terms,
		messaging.BillWildcard(ref.RestaurantID, ref.BillID), g.log)
	if err != nil {
		g.log.Error("failed to watch bill", "bill_id", ref.BillID, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"), time.Now().Add(writeWait))
		return
	}
	defer coord.Close()

	// Drain client frames so close and pong handling work; the stream is
	// one-way otherwise.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	summary, _ := coord.Current()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(summary); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-c.Request.Context().Done():
			return
		case summary := <-coord.Updates():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(summary); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
