// checkrequests prints the pending requests held by a queue server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"pin-relay/internal/config"
	"pin-relay/internal/queueclient"
	"pin-relay/internal/util"
)

func main() {
	cfg := config.LoadClientConfig()

	serverURL := flag.String("server", cfg.ServerURL, "queue server base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	showPIN := flag.Bool("show-pin", false, "print PINs in clear text")
	flag.Parse()

	util.Init(cfg.Environment, "warn", "console")
	defer util.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pending, err := queueclient.New(*serverURL, util.Get()).PendingRequests(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch pending requests from %s: %v\n", *serverURL, err)
		os.Exit(1)
	}

	if len(pending) == 0 {
		fmt.Println("No pending requests")
		return
	}

	fmt.Printf("%d pending request(s)\n", len(pending))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPIN\tDEVICE\tSUBMITTED")
	for _, req := range pending {
		pin := "****"
		if *showPIN {
			pin = req.PIN
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", req.ID, pin, req.DeviceName, req.Timestamp.Local().Format(time.DateTime))
	}
	_ = w.Flush()
}
