// Command imscall-sim runs an interactive call-tracking simulator: a Phone
// instance wired to a loopback session layer that acknowledges every request,
// driven from stdin. Useful for exploring leg and state behavior without a
// modem.
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/imscall"
	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/notify"
	"github.com/opd-ai/imscall/tracker"
)

var (
	configPath  string
	mqttBroker  string
	mqttPrefix  string
	metricsAddr string
	logLevel    string
)

func main() {
	root := &cobra.Command{
		Use:   "imscall-sim",
		Short: "Interactive IMS call tracking simulator",
		Long: `imscall-sim drives the call tracker against a loopback session layer.
Type "help" at the prompt for the command list.`,
		RunE: run,
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "carrier config YAML file")
	root.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL for event publishing (e.g. tcp://localhost:1883)")
	root.Flags().StringVar(&mqttPrefix, "mqtt-prefix", "imscall/phone0", "MQTT topic prefix")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9091)")
	root.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)

	opts := imscall.NewOptions(nil)
	opts.ConfigPath = configPath

	if mqttBroker != "" {
		sink, err := notify.NewMQTTSink(notify.MQTTOptions{
			Broker:      mqttBroker,
			ClientID:    "imscall-sim",
			TopicPrefix: mqttPrefix,
		})
		if err != nil {
			return err
		}
		defer sink.Close()
		opts.Sink = sink
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = tracker.NewMetrics(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logrus.WithField("error", err.Error()).Error("Metrics server stopped")
			}
		}()
	}

	sess := newSimSession()
	opts.Session = sess
	phone, err := imscall.New(opts)
	if err != nil {
		return err
	}
	defer phone.Kill()
	sess.attach(phone)

	phone.OnDTMFReceived(func(h call.Handle, digit byte) {
		fmt.Printf("<- DTMF %c on %s\n", digit, short(h))
	})

	fmt.Println("imscall-sim ready; type \"help\" for commands")
	repl(phone, sess)
	return nil
}

func repl(phone *imscall.Phone, sess *simSession) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := dispatch(phone, sess, fields); err != nil {
			fmt.Println("error:", err)
		}
		phone.Flush()
		phone.Flush()
	}
}

func dispatch(phone *imscall.Phone, sess *simSession, fields []string) error {
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "help":
		printHelp()
		return nil
	case "dial":
		if arg == "" {
			return fmt.Errorf("usage: dial <number>")
		}
		h, err := phone.Dial(arg)
		if err != nil {
			return err
		}
		fmt.Println("dialing as", short(h))
		return nil
	case "video":
		if arg == "" {
			return fmt.Errorf("usage: video <number>")
		}
		h, err := phone.DialVideo(arg)
		if err != nil {
			return err
		}
		fmt.Println("video dialing as", short(h))
		return nil
	case "ring":
		if arg == "" {
			return fmt.Errorf("usage: ring <number>")
		}
		h := sess.injectIncoming(arg)
		fmt.Println("inbound call", short(h))
		return nil
	case "answer":
		return phone.Answer()
	case "reject":
		return phone.Reject()
	case "hangup":
		return phone.Hangup()
	case "hold":
		return phone.Hold()
	case "unhold":
		return phone.Unhold()
	case "conference":
		return phone.Conference()
	case "transfer":
		return phone.Transfer()
	case "dtmf":
		if len(arg) != 1 {
			return fmt.Errorf("usage: dtmf <digit>")
		}
		return phone.SendDTMF(arg[0])
	case "data":
		phone.SetDataEnabled(arg != "off")
		return nil
	case "clear":
		phone.ClearDisconnected()
		return nil
	case "status":
		printStatus(phone)
		return nil
	default:
		return fmt.Errorf("unknown command %q, try \"help\"", fields[0])
	}
}

func printHelp() {
	fmt.Print(`commands:
  dial <number>     start an outgoing audio call
  video <number>    start an outgoing video call
  ring <number>     simulate an inbound call
  answer            accept the ringing call
  reject            decline the ringing call
  hangup            end the active call
  hold              hold the active call (swaps with a held call)
  unhold            resume the held call
  conference        merge active and held calls
  transfer          connect active and held calls to each other
  dtmf <digit>      send a DTMF digit
  data <on|off>     toggle mobile data (video downgrade policy)
  clear             prune ended calls
  status            show leg and phone state
  quit              exit
`)
}

func printStatus(phone *imscall.Phone) {
	fmt.Println("phone:", phone.PhoneState())
	for _, id := range []call.LegID{call.LegRinging, call.LegForeground, call.LegBackground, call.LegHandover} {
		fmt.Printf("  %-10s %s\n", id.String(), phone.CallState(id))
	}
}

func short(h call.Handle) string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
