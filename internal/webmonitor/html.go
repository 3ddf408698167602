package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Herd Live Overlay</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; background: #0f1218; color: #e5e7eb; font-family: sans-serif; }
        .app { max-width: 1320px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; }
        .badge { padding: 4px 10px; border-radius: 999px; font-size: 12px; background: #374151; }
        .badge.live { background: #15803d; }
        .badge.simulated { background: #b45309; }
        #stream { width: 100%; height: auto; display: block; background: #181c24; border-radius: 6px; }
        button { background: #2563eb; color: #fff; border: 0; border-radius: 4px; padding: 6px 14px; cursor: pointer; }
        .stats { font-size: 13px; color: #9ca3af; margin-top: 8px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <h2>Live Feed</h2>
            <div>
                <span class="badge" id="source-badge">Waiting for data...</span>
                <button type="button" id="btn-play">Pause</button>
            </div>
        </div>
        <img id="stream" src="/stream" alt="Live detection overlay">
        <div class="stats" id="stats"></div>
    </div>
    <script>
        const badge = document.getElementById('source-badge');
        const button = document.getElementById('btn-play');
        const stats = document.getElementById('stats');

        function renderStatus(s) {
            badge.textContent = s.source || 'idle';
            badge.className = 'badge ' + (s.source || '');
            button.textContent = s.playing ? 'Pause' : 'Play';
            stats.textContent = s.detection_count + ' subjects, ' + s.at_risk_count +
                ' at risk. Last live data: ' + s.last_live + '.';
        }

        async function refresh() {
            const resp = await fetch('/api/status');
            renderStatus(await resp.json());
        }

        button.addEventListener('click', async () => {
            await fetch('/api/playback', { method: 'POST' });
            refresh();
        });

        const events = new EventSource('/api/status/stream');
        events.onmessage = (e) => renderStatus(JSON.parse(e.data));
        refresh();
    </script>
</body>
</html>
`
