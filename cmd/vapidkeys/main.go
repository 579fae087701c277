// Command vapidkeys prints a fresh VAPID key pair in .env format.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	subject := flag.String("subject", "mailto:admin@memories.local", "contact URI sent to push services")
	flag.Parse()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatal("Failed to generate VAPID keys:", err)
	}

	fmt.Println("# Add these to your .env file")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
	fmt.Printf("VAPID_SUBJECT=%s\n", *subject)
}
