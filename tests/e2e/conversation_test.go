package e2e

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"
)

var orderRefPattern = regexp.MustCompile(`ORD\d{6}`)

// 実行ごとに新しい顧客番号を使い、過去の実行のセッションを引きずらない
func freshCustomer() string {
	return fmt.Sprintf("whatsapp:+25471%07d", time.Now().UnixNano()%10000000)
}

func Test_Conversation_OrderToCancel_FullFlow(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()
	from := freshCustomer()

	//挨拶
	reply := sendWhatsApp(t, c, ctx, from, "hi")
	if !strings.Contains(reply, "Karibu") {
		t.Fatalf("greeting reply unexpected: %s", reply)
	}

	//メニュー表示
	reply = sendWhatsApp(t, c, ctx, from, "menu")
	if !strings.Contains(reply, "menu:") {
		t.Fatalf("menu reply unexpected: %s", reply)
	}

	//注文開始して商品を1つ入れる
	reply = sendWhatsApp(t, c, ctx, from, "order")
	if !strings.Contains(reply, "item name") {
		t.Fatalf("order reply unexpected: %s", reply)
	}

	reply = sendWhatsApp(t, c, ctx, from, "chips")
	if !strings.Contains(reply, "How many") {
		t.Fatalf("item reply unexpected: %s", reply)
	}

	reply = sendWhatsApp(t, c, ctx, from, "2")
	if !strings.Contains(reply, "Added") {
		t.Fatalf("quantity reply unexpected: %s", reply)
	}

	//確定でdraft注文ができ、参照番号が返る
	reply = sendWhatsApp(t, c, ctx, from, "done")
	orderID := orderRefPattern.FindString(reply)
	if orderID == "" {
		t.Fatalf("no order reference in checkout reply: %s", reply)
	}

	//statusで自分の注文が見える
	reply = sendWhatsApp(t, c, ctx, from, "status "+orderID)
	if !strings.Contains(reply, orderID) {
		t.Fatalf("status reply unexpected: %s", reply)
	}

	//cancelで落とせる
	reply = sendWhatsApp(t, c, ctx, from, "cancel")
	if !strings.Contains(reply, "cancelled") {
		t.Fatalf("cancel reply unexpected: %s", reply)
	}
}

// Test: 紐づかない番号宛でも200のTwiMLで案内が返る（Twilioへの5xxは出さない）
func Test_Conversation_UnknownChannel_StillReplies(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	form := url.Values{}
	form.Set("From", freshCustomer())
	form.Set("To", "whatsapp:+254799999999")
	form.Set("Body", "hi")

	resp, data := c.doForm(ctx, t, "/webhook/whatsapp", form)
	requireStatus(t, resp, 200, data)
	if !strings.Contains(string(data), "not set up") {
		t.Fatalf("unexpected reply: %s", string(data))
	}
}
