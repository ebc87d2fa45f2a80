// Command echo is a minimal ring-of-two demonstration, the Go analogue of
// examples/simple.rs and examples/simple_tokio.rs: two ranks wired over an
// in-process fake transport, each sending "hello world" to the other and
// printing whatever they receive.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/joeycumines/go-msgswitch/msgswitch"
	"github.com/joeycumines/go-msgswitch/ptp"
	"github.com/joeycumines/go-msgswitch/ptp/simnet"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	net := simnet.New(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for r := ptp.Rank(0); r < 2; r++ {
		wg.Add(1)
		go runRank(ctx, &wg, log, net, r)
	}
	wg.Wait()
}

func runRank(ctx context.Context, wg *sync.WaitGroup, log zerolog.Logger, net *simnet.Network, self ptp.Rank) {
	defer wg.Done()

	sw := msgswitch.New(net.Rank(self), msgswitch.WithLogger(log.With().Int32("rank", int32(self)).Logger()))
	link := sw.Link()
	lc := msgswitch.PairWithBytes(link)

	go func() {
		if err := sw.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Int32("rank", int32(self)).Msg("switch run exited")
		}
	}()

	peer := ptp.Rank(1 - self)
	sendDone := lc.Send(peer, []byte("hello world"))

	incoming := lc.Incoming(ptp.AnySelector)
	status, recvFut, ok, err := incoming.Next(ctx)
	if err != nil || !ok {
		lc.Close()
		return
	}

	msg, err := recvFut.Wait(ctx)
	if err == nil {
		fmt.Printf("rank %d received %q from rank %d\n", self, msg, status.Source)
	}

	if _, err := sendDone.Wait(ctx); err != nil {
		log.Error().Err(err).Msg("send did not complete")
	}

	lc.Close()
}
