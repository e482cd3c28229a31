// Command client is a small CLI driver for the matchbook TCP gateway: it
// sends one add/cancel/modify command and prints reports as they arrive.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"matchbook/internal/common"
	matchbooknet "matchbook/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the matchbook server")
	action := flag.String("action", "add", "action to perform: 'add', 'cancel', 'modify'")

	orderID := flag.Uint64("order-id", 0, "order id (compulsory)")
	userID := flag.Uint64("user-id", 1, "user id")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	quantity := flag.Uint64("quantity", 10, "order quantity")
	price := flag.Uint64("price", 100, "limit price (ticks)")

	flag.Parse()

	if *orderID == 0 {
		fmt.Println("Error: -order-id is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	go readReports(conn)

	side := common.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Sell
	}

	var payload []byte
	switch strings.ToLower(*action) {
	case "add":
		payload = matchbooknet.AddOrderMessage{
			OrderID:  *orderID,
			UserID:   *userID,
			Side:     side,
			Quantity: *quantity,
			Price:    *price,
		}.Encode()
	case "cancel":
		payload = matchbooknet.CancelOrderMessage{OrderID: *orderID}.Encode()
	case "modify":
		payload = matchbooknet.ModifyOrderMessage{
			OrderID:     *orderID,
			NewQuantity: *quantity,
			NewPrice:    *price,
		}.Encode()
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	if _, err := conn.Write(payload); err != nil {
		log.Fatalf("failed to send %s: %v", *action, err)
	}
	fmt.Printf("-> sent %s for order %d\n", *action, *orderID)

	fmt.Println("listening for reports... (press ctrl+c to exit)")
	select {}
}

func readReports(conn net.Conn) {
	buffer := make([]byte, 4*1024)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			log.Printf("connection closed: %v", err)
			os.Exit(0)
		}

		report, err := matchbooknet.ParseReport(buffer[:n])
		if err != nil {
			log.Printf("error parsing report: %v", err)
			continue
		}

		printReport(report)
	}
}

func printReport(r *matchbooknet.Report) {
	switch r.Type {
	case matchbooknet.ReportTradeExecuted:
		fmt.Printf("[TRADE] exec=%d aggressor=%d resting=%d price=%d qty=%d\n",
			r.ExecutionID, r.AggressorOrderID, r.RestingOrderID, r.Price, r.Quantity)
	case matchbooknet.ReportOrderAcknowledged:
		fmt.Printf("[ACK] order=%d\n", r.OrderID)
	case matchbooknet.ReportOrderCancelled:
		fmt.Printf("[CANCEL] order=%d\n", r.OrderID)
	case matchbooknet.ReportOrderModified:
		fmt.Printf("[MODIFY] order=%d qty=%d price=%d\n", r.OrderID, r.NewQuantity, r.NewPrice)
	case matchbooknet.ReportOrderRejected:
		fmt.Printf("[REJECT] order=%d reason=%s\n", r.OrderID, r.Reason)
	case matchbooknet.ReportTopOfBookUpdate:
		fmt.Printf("[TOP] bid=%d ask=%d volume=%d\n", r.BestBid, r.BestAsk, r.Volume)
	}
}
