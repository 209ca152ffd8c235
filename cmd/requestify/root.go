package main

import (
	"github.com/spf13/cobra"
)

var (
	// root flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "requestify",
	Short: "In-game chat soundboard",
	Long: `Requestify watches a game's console log for chat commands and plays
the requested audio: song requests are queued and played one at a time,
text-to-speech is mixed on top of whatever is playing.

Chat commands (default prefix "!"):
  !play <url or search>   request a song (alias: !p)
  !tts <text>             speak text over the current song
  !stop                   stop playback and clear the queue (admin, alias: !s)
  !skip                   skip to the next request (admin, alias: !next)
  !queue                  print the queue (admin, aliases: !q, !list)

The game must write chat to its console log, e.g. TF2 launched with
-condebug. The log file is auto-detected from the usual Steam locations
and can be overridden in the config file or with REQUESTIFY_LOGFILE.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Config file (YAML); defaults apply if not specified")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}
