package main

import "net/http"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Lobby</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
:root{--bg:#191919;--card:#242424;--border:#333;--fg:#e5e5e5;--muted:#737373;--radius:6px}
body{font-family:system-ui,sans-serif;background:var(--bg);color:var(--fg);min-height:100vh;display:flex;align-items:center;justify-content:center;padding:24px}
.card{background:var(--card);border:1px solid var(--border);border-radius:var(--radius);padding:24px;width:100%;max-width:360px;display:flex;flex-direction:column;gap:16px}
input,button{font:inherit;padding:10px;border-radius:var(--radius);border:1px solid var(--border);background:var(--bg);color:var(--fg)}
input{text-transform:uppercase;letter-spacing:.3em;text-align:center}
button{cursor:pointer}
ul{list-style:none;font-size:13px;color:var(--muted)}
</style>
</head>
<body>
<div class="card">
<form method="post" action="/c"><button type="submit">Create lobby</button></form>
<form onsubmit="location='/g/'+code.value.toUpperCase();return false">
<input id="code" maxlength="4" pattern="[A-Za-z]{4}" placeholder="CODE" required>
</form>
<ul id="rooms"></ul>
<script>
fetch('/rooms').then(r=>r.json()).then(rooms=>{
  const ul=document.getElementById('rooms');
  for(const r of rooms){
    const li=document.createElement('li');
    const a=document.createElement('a');
    a.href='/g/'+r.code;
    a.textContent=r.name+' ('+r.players+')';
    li.appendChild(a);ul.appendChild(li);
  }
});
</script>
</div>
</body>
</html>
`

const gameHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Lobby</title>
</head>
<body>
<pre id="log"></pre>
<script>
const code=location.pathname.split('/').pop();
const proto=location.protocol==='https:'?'wss':'ws';
const ws=new WebSocket(proto+'://'+location.host+'/ws/'+code);
const log=m=>document.getElementById('log').textContent+=m+'\n';
ws.onopen=()=>{
  const name=prompt('Display name?')||'anon';
  ws.send(JSON.stringify({type:'PlayerJoined',data:{name}}));
};
ws.onmessage=e=>log(e.data);
ws.onclose=()=>log('(disconnected)');
</script>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}
