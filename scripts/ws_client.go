// Package main runs a demo client: it submits a run for an instance file
// and prints the run's event stream.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	problem := flag.String("problem", "", "instance file to submit")
	generations := flag.Int("generations", 50, "generations to evolve")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	text, err := os.ReadFile(*problem)
	if err != nil {
		log.Fatal().Err(err).Msg("read problem")
	}
	body, _ := json.Marshal(map[string]any{"name": *problem, "instance": string(text), "generations": *generations})
	resp, err := http.Post(base+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal().Err(err).Msg("create run")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatal().Int("status", resp.StatusCode).Msg("create run")
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal().Err(err).Msg("decode run")
	}
	log.Info().Str("run", run.ID).Msg("run created")

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial")
	}
	defer func() { _ = c.Close() }()

	for {
		var e event
		if err := c.ReadJSON(&e); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("read")
			}
			return
		}
		if len(e.Data) == 0 {
			e.Data = json.RawMessage("null")
		}
		log.Info().Str("type", e.Type).RawJSON("data", e.Data).Msg("event")
	}
}
