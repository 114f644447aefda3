package main

import "github.com/wendellddr/Bot-Spotify-sub000/cmd"

func main() {
	cmd.Execute()
}
