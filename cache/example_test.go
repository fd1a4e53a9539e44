package cache_test

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/latexbot/cache"
)

func ExampleMD5Keyer_Key() {
	keyer := cache.NewMD5Keyer()
	fmt.Println(keyer.Key("abc"))
	// Output:
	// 900150983cd24fb0d6963f7d28e17f72
}

func ExampleDir_Reserve() {
	root, _ := os.MkdirTemp("", "latexbot-cache")
	defer os.RemoveAll(root)

	d, _ := cache.NewDir(root, "png")
	ctx := context.Background()
	key := cache.NewMD5Keyer().Key(`e^{i\pi} + 1 = 0`)

	fmt.Println("hit before:", d.Exists(ctx, key))

	r, _ := d.Reserve(ctx, key)
	_, _ = r.Write([]byte("\x89PNG"))
	_ = r.Commit()

	fmt.Println("hit after:", d.Exists(ctx, key))
	// Output:
	// hit before: false
	// hit after: true
}
