package bots

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
)

// embedTemplate is the loader script a site embeds with a single <script>
// tag. It draws a launcher button and a chat panel, and talks to the bot
// chat endpoint with fetch.
var embedTemplate = template.Must(template.New("embed").Parse(`(function () {
  "use strict";

  var BOT_ID = {{.BotID}};
  var BASE_URL = {{.BaseURL}};
  var PRIMARY = {{.PrimaryColor}};
  var GREETING = {{.Greeting}};
  var POSITION = {{.Position}};
  var PANEL_WIDTH = {{.PanelWidth}};
  var PANEL_HEIGHT = {{.PanelHeight}};

  if (document.getElementById("support-bot-" + BOT_ID)) return;

  var corner = POSITION.indexOf("left") >= 0 ? "left:20px;" : "right:20px;";
  var edge = POSITION.indexOf("top") >= 0 ? "top:20px;" : "bottom:20px;";

  var launcher = document.createElement("button");
  launcher.id = "support-bot-" + BOT_ID;
  launcher.textContent = {{.ButtonLabel}};
  launcher.style.cssText =
    "position:fixed;" + corner + edge +
    "z-index:99999;padding:12px 18px;border:none;border-radius:24px;" +
    "background:" + PRIMARY + ";color:#fff;cursor:pointer;font-size:14px;" +
    "box-shadow:0 4px 12px rgba(0,0,0,.25);";

  var panel = document.createElement("div");
  panel.style.cssText =
    "position:fixed;" + corner + "bottom:76px;z-index:99999;display:none;" +
    "width:" + PANEL_WIDTH + "px;height:" + PANEL_HEIGHT + "px;" +
    "background:#fff;border-radius:12px;box-shadow:0 8px 24px rgba(0,0,0,.2);" +
    "flex-direction:column;overflow:hidden;font-family:sans-serif;";

  var log = document.createElement("div");
  log.style.cssText = "flex:1;overflow-y:auto;padding:12px;font-size:14px;";

  var form = document.createElement("form");
  form.style.cssText = "display:flex;border-top:1px solid #eee;";
  var input = document.createElement("input");
  input.placeholder = "Type a message...";
  input.style.cssText = "flex:1;border:none;padding:10px;outline:none;font-size:14px;";
  var send = document.createElement("button");
  send.type = "submit";
  send.textContent = ">";
  send.style.cssText = "border:none;background:" + PRIMARY + ";color:#fff;padding:0 16px;cursor:pointer;";
  form.appendChild(input);
  form.appendChild(send);
  panel.appendChild(log);
  panel.appendChild(form);

  function addBubble(text, mine) {
    var row = document.createElement("div");
    row.style.cssText = "margin:6px 0;display:flex;justify-content:" + (mine ? "flex-end" : "flex-start") + ";";
    var bubble = document.createElement("div");
    bubble.textContent = text;
    bubble.style.cssText =
      "max-width:80%;padding:8px 12px;border-radius:12px;white-space:pre-wrap;" +
      (mine ? "background:" + PRIMARY + ";color:#fff;" : "background:#f1f1f1;color:#111;");
    row.appendChild(bubble);
    log.appendChild(row);
    log.scrollTop = log.scrollHeight;
  }

  launcher.addEventListener("click", function () {
    var open = panel.style.display !== "none";
    panel.style.display = open ? "none" : "flex";
    if (!open && !log.childElementCount) addBubble(GREETING, false);
  });

  form.addEventListener("submit", function (ev) {
    ev.preventDefault();
    var message = input.value.trim();
    if (!message) return;
    addBubble(message, true);
    input.value = "";
    fetch(BASE_URL + "/api/bots/" + BOT_ID + "/chat", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ message: message })
    })
      .then(function (res) { return res.json(); })
      .then(function (data) { addBubble(data.response || "...", false); })
      .catch(function () { addBubble("Connection error, please try again.", false); });
  });

  document.body.appendChild(launcher);
  document.body.appendChild(panel);
})();
`))

// panelSizes maps the bot's size setting to widget dimensions in pixels.
var panelSizes = map[string][2]int{
	"small":  {300, 400},
	"medium": {350, 500},
	"large":  {400, 600},
}

type embedParams struct {
	BotID        string
	BaseURL      string
	PrimaryColor string
	Greeting     string
	Position     string
	ButtonLabel  string
	PanelWidth   int
	PanelHeight  int
}

// RenderEmbedScript produces the JavaScript loader for a bot. String values
// are marshaled into JS literals so bot configuration cannot break out of
// the script.
func RenderEmbedScript(bot *models.Bot, baseURL string) (string, error) {
	size, ok := panelSizes[bot.Size]
	if !ok {
		size = panelSizes["medium"]
	}
	params := embedParams{
		BotID:        jsString(bot.ID),
		BaseURL:      jsString(strings.TrimRight(baseURL, "/")),
		PrimaryColor: jsString(bot.PrimaryColor),
		Greeting:     jsString(bot.GreetingMessage),
		Position:     jsString(bot.Position),
		ButtonLabel:  jsString("Chat with " + bot.Name),
		PanelWidth:   size[0],
		PanelHeight:  size[1],
	}
	var b strings.Builder
	if err := embedTemplate.Execute(&b, params); err != nil {
		return "", fmt.Errorf("rendering embed script: %w", err)
	}
	return b.String(), nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '<':
			// Keeps "</script>" out of the inline loader.
			b.WriteString(`\u003c`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
