package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

const testRuntimeID = "runtime-under-test"

func fillMsg() model.Message {
	return model.Message{
		Action:           model.ActionFillCredentials,
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		Username:         "bob",
		Password:         "hunter2",
	}
}

func ownSender() model.Sender {
	return model.Sender{ID: testRuntimeID}
}

var bubblingInputChange = []fakeEvent{{Type: "input", Bubbles: true}, {Type: "change", Bubbles: true}}

func TestPageFiller_FillsBothFields(t *testing.T) {
	user, pass := &fakeElement{}, &fakeElement{}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#user": user, "#pass": pass}}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	ack := f.HandleMessage(context.Background(), fillMsg(), ownSender())

	assert.Equal(t, model.Ack{Success: true}, ack)
	assert.Equal(t, "bob", user.value)
	assert.Equal(t, "hunter2", pass.value)
	assert.Equal(t, bubblingInputChange, user.events)
	assert.Equal(t, bubblingInputChange, pass.events)
}

func TestPageFiller_RejectsForeignSender(t *testing.T) {
	user, pass := &fakeElement{}, &fakeElement{}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#user": user, "#pass": pass}}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	for _, sender := range []model.Sender{{ID: "some-web-page"}, {ID: ""}} {
		ack := f.HandleMessage(context.Background(), fillMsg(), sender)
		assert.Equal(t, model.Ack{Success: false, Error: "Invalid sender"}, ack)
	}

	assert.Empty(t, doc.queries, "no page access before the sender is verified")
	assert.Empty(t, user.value)
	assert.Empty(t, pass.events)
}

func TestPageFiller_UnknownAction(t *testing.T) {
	doc := &fakeDocument{}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	msg := fillMsg()
	msg.Action = model.ActionUnknown
	ack := f.HandleMessage(context.Background(), msg, ownSender())

	assert.Equal(t, model.Ack{Success: false, Error: "Unknown action"}, ack)
	assert.Empty(t, doc.queries)
}

func TestPageFiller_MissingParameters(t *testing.T) {
	blank := []func(*model.Message){
		func(m *model.Message) { m.UsernameSelector = "" },
		func(m *model.Message) { m.PasswordSelector = "" },
		func(m *model.Message) { m.Username = "" },
		func(m *model.Message) { m.Password = "" },
	}

	for _, unset := range blank {
		doc := &fakeDocument{}
		f := NewPageFiller(testRuntimeID, doc, discardLogger())
		msg := fillMsg()
		unset(&msg)

		ack := f.HandleMessage(context.Background(), msg, ownSender())
		assert.False(t, ack.Success)
		assert.Empty(t, doc.queries)
	}
}

func TestPageFiller_NoFieldsFound(t *testing.T) {
	other := &fakeElement{}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#other": other}}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	ack := f.HandleMessage(context.Background(), fillMsg(), ownSender())

	assert.False(t, ack.Success)
	assert.Equal(t, "No fields found", ack.Error)
	assert.Empty(t, other.value)
	assert.Empty(t, other.events)
}

func TestPageFiller_PasswordOnlyIsSuccess(t *testing.T) {
	pass := &fakeElement{}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#pass": pass}}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	ack := f.HandleMessage(context.Background(), fillMsg(), ownSender())

	assert.True(t, ack.Success)
	assert.Equal(t, "hunter2", pass.value)
	assert.Equal(t, bubblingInputChange, pass.events)
}

func TestPageFiller_QueryErrorBecomesFailedAck(t *testing.T) {
	doc := &fakeDocument{queryErr: errors.New("SyntaxError: not a valid selector")}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	ack := f.HandleMessage(context.Background(), fillMsg(), ownSender())
	assert.Equal(t, model.Ack{Success: false, Error: "Failed to fill credentials"}, ack)
}

func TestPageFiller_ElementErrorBecomesFailedAck(t *testing.T) {
	user := &fakeElement{setErr: errors.New("element detached")}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#user": user}}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	ack := f.HandleMessage(context.Background(), fillMsg(), ownSender())
	assert.Equal(t, model.Ack{Success: false, Error: "Failed to fill credentials"}, ack)
	assert.Empty(t, user.events)
}

func TestPageFiller_PanicBecomesFailedAck(t *testing.T) {
	user := &fakeElement{panicMsg: "boom"}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#user": user}}
	f := NewPageFiller(testRuntimeID, doc, discardLogger())

	var ack model.Ack
	require.NotPanics(t, func() {
		ack = f.HandleMessage(context.Background(), fillMsg(), ownSender())
	})
	assert.Equal(t, model.Ack{Success: false, Error: "Failed to fill credentials"}, ack)
}

func TestPageFiller_NilDocument(t *testing.T) {
	f := NewPageFiller(testRuntimeID, nil, discardLogger())

	ack := f.HandleMessage(context.Background(), fillMsg(), ownSender())
	assert.False(t, ack.Success)
}

func TestProbeSelectors(t *testing.T) {
	user := &fakeElement{}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#user": user}}

	res, err := ProbeSelectors(context.Background(), doc, "#user", "#pass")
	require.NoError(t, err)
	assert.True(t, res.UsernameFound)
	assert.False(t, res.PasswordFound)
	assert.True(t, res.Fillable())
	assert.Empty(t, user.value, "probing must not modify the page")
	assert.Empty(t, user.events)

	res, err = ProbeSelectors(context.Background(), &fakeDocument{}, "#user", "#pass")
	require.NoError(t, err)
	assert.False(t, res.Fillable())

	_, err = ProbeSelectors(context.Background(), &fakeDocument{queryErr: errors.New("bad selector")}, "#user", "#pass")
	require.Error(t, err)
}
